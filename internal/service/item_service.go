package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-feedback-api/internal/dto"
	"github.com/noah-isme/gema-feedback-api/internal/items"
	"github.com/noah-isme/gema-feedback-api/internal/models"
	"github.com/noah-isme/gema-feedback-api/internal/repository"
)

// ItemService exposes the facilitator side of building a feedback.
type ItemService interface {
	List(ctx context.Context, feedbackID uint) ([]dto.ItemResponse, error)
	Get(ctx context.Context, feedbackID, itemID uint) (dto.ItemResponse, error)
	Create(ctx context.Context, feedbackID uint, req dto.ItemCreateRequest, actor Actor) (dto.ItemResponse, error)
	Update(ctx context.Context, feedbackID, itemID uint, req dto.ItemUpdateRequest, actor Actor) (dto.ItemResponse, error)
	Delete(ctx context.Context, feedbackID, itemID uint, actor Actor) error
	MoveUp(ctx context.Context, feedbackID, itemID uint) ([]dto.ItemResponse, error)
	MoveDown(ctx context.Context, feedbackID, itemID uint) ([]dto.ItemResponse, error)
	MoveTo(ctx context.Context, feedbackID, itemID uint, req dto.ItemMoveRequest) ([]dto.ItemResponse, error)
	SaveOrder(ctx context.Context, feedbackID uint, req dto.ItemOrderRequest) ([]dto.ItemResponse, error)
	SwitchRequired(ctx context.Context, feedbackID, itemID uint) (dto.ItemResponse, error)
	CreatePagebreak(ctx context.Context, feedbackID uint, actor Actor) (dto.ItemResponse, error)
	DependCandidates(ctx context.Context, feedbackID, itemID uint) ([]dto.DependCandidateResponse, error)
	SetGradedAnswer(ctx context.Context, feedbackID, itemID uint, req dto.GradedAnswerRequest) (dto.ItemResponse, error)
}

type itemService struct {
	stores    Stores
	validator *validator.Validate
	events    EventRecorder
	analysis  AnalysisInvalidator
	marks     *markCalculator
	files     *attachmentLoader
	logger    zerolog.Logger
}

// NewItemService builds the item editing service.
func NewItemService(stores Stores, validate *validator.Validate, events EventRecorder, analysis AnalysisInvalidator, logger zerolog.Logger) ItemService {
	return &itemService{
		stores:    stores,
		validator: validate,
		events:    eventsOrNop(events),
		analysis:  analysis,
		marks:     newMarkCalculator(stores),
		files:     &attachmentLoader{files: stores.Files},
		logger:    logger.With().Str("component", "item_service").Logger(),
	}
}

func (s *itemService) feedback(ctx context.Context, feedbackID uint) (models.Feedback, error) {
	feedback, err := s.stores.Feedbacks.GetByID(ctx, feedbackID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Feedback{}, ErrFeedbackNotFound
		}
		return models.Feedback{}, err
	}
	return feedback, nil
}

func (s *itemService) item(ctx context.Context, feedbackID, itemID uint) (models.Item, error) {
	item, err := s.stores.Items.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Item{}, ErrItemNotFound
		}
		return models.Item{}, err
	}
	if item.FeedbackID != feedbackID {
		return models.Item{}, ErrItemNotFound
	}
	return item, nil
}

func (s *itemService) items(ctx context.Context, feedbackID uint) ([]models.Item, error) {
	return s.stores.Items.List(ctx, repository.ItemOwner{FeedbackID: feedbackID})
}

// respond converts items and attaches graded answers and files.
func (s *itemService) respond(ctx context.Context, list []models.Item) ([]dto.ItemResponse, error) {
	number := 1
	for i := range list {
		if list[i].HasValue {
			list[i].ItemNumber = number
			number++
		}
	}
	responses := dto.NewItemResponseSlice(list)

	graded := make([]uint, 0)
	for _, item := range list {
		if item.IsGraded {
			graded = append(graded, item.ID)
		}
	}
	questions, err := s.stores.Items.ListGradedQuestions(ctx, graded)
	if err != nil {
		return nil, err
	}
	byItem := make(map[uint]models.GradedQuestion, len(questions))
	for _, question := range questions {
		byItem[question.ItemID] = question
	}
	for i := range responses {
		if question, ok := byItem[responses[i].ID]; ok {
			responses[i].Graded = &dto.GradedAnswerResponse{Answer: question.Answer, Grade: question.Grade}
		}
	}
	return s.files.withFiles(ctx, responses)
}

func (s *itemService) respondOne(ctx context.Context, feedbackID, itemID uint) (dto.ItemResponse, error) {
	list, err := s.items(ctx, feedbackID)
	if err != nil {
		return dto.ItemResponse{}, err
	}
	responses, err := s.respond(ctx, list)
	if err != nil {
		return dto.ItemResponse{}, err
	}
	for _, response := range responses {
		if response.ID == itemID {
			return response, nil
		}
	}
	return dto.ItemResponse{}, ErrItemNotFound
}

func (s *itemService) respondAll(ctx context.Context, feedbackID uint) ([]dto.ItemResponse, error) {
	list, err := s.items(ctx, feedbackID)
	if err != nil {
		return nil, err
	}
	return s.respond(ctx, list)
}

func (s *itemService) List(ctx context.Context, feedbackID uint) ([]dto.ItemResponse, error) {
	if _, err := s.feedback(ctx, feedbackID); err != nil {
		return nil, err
	}
	return s.respondAll(ctx, feedbackID)
}

func (s *itemService) Get(ctx context.Context, feedbackID, itemID uint) (dto.ItemResponse, error) {
	if _, err := s.item(ctx, feedbackID, itemID); err != nil {
		return dto.ItemResponse{}, err
	}
	return s.respondOne(ctx, feedbackID, itemID)
}

// applyFields validates fields against the item type and copies them onto item.
func (s *itemService) applyFields(ctx context.Context, item *models.Item, fields dto.ItemFields) error {
	typ, err := items.Lookup(item.Typ)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownItemType, item.Typ)
	}

	presentation := strings.TrimSpace(fields.Presentation)
	if item.Typ == models.ItemTypeLabel {
		presentation = items.SanitizeHTML(presentation)
	}
	if err := typ.ValidatePresentation(presentation); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}

	item.Name = items.SanitizeHTML(fields.Name)
	item.Label = strings.TrimSpace(fields.Label)
	item.Presentation = presentation
	item.Options = strings.TrimSpace(fields.Options)
	item.HasValue = typ.HasValue()
	item.Required = fields.Required && typ.CanSwitchRequire()

	item.DependItem = 0
	item.DependValue = ""
	if fields.DependItem == 0 {
		return nil
	}
	if fields.DependItem == item.ID {
		return ErrInvalidDependency
	}
	dependItem, err := s.stores.Items.GetByID(ctx, fields.DependItem)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidDependency
		}
		return err
	}
	dependType, err := items.Lookup(dependItem.Typ)
	if err != nil || dependItem.FeedbackID != item.FeedbackID || !dependItem.HasValue || !dependType.DependCandidate() {
		return ErrInvalidDependency
	}
	if dependItem.Position >= item.Position {
		return ErrInvalidDependency
	}
	item.DependItem = dependItem.ID
	item.DependValue = strings.TrimSpace(fields.DependValue)
	return nil
}

func (s *itemService) Create(ctx context.Context, feedbackID uint, req dto.ItemCreateRequest, actor Actor) (dto.ItemResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ItemResponse{}, err
	}
	if req.Typ == models.ItemTypePagebreak {
		return s.CreatePagebreak(ctx, feedbackID, actor)
	}
	if _, err := s.feedback(ctx, feedbackID); err != nil {
		return dto.ItemResponse{}, err
	}

	count, err := s.stores.Items.Count(ctx, repository.ItemOwner{FeedbackID: feedbackID})
	if err != nil {
		return dto.ItemResponse{}, err
	}
	position := int(count) + 1
	if req.Position > 0 && req.Position < position {
		position = req.Position
	}
	// dependencies are checked against the final position
	item := models.Item{FeedbackID: feedbackID, Typ: strings.TrimSpace(req.Typ), Position: position}
	if err := s.applyFields(ctx, &item, req.ItemFields); err != nil {
		return dto.ItemResponse{}, err
	}
	item.Position = int(count) + 1
	if err := s.stores.Items.Create(ctx, &item); err != nil {
		return dto.ItemResponse{}, err
	}

	if position < item.Position {
		if _, err := s.move(ctx, feedbackID, item.ID, position); err != nil {
			return dto.ItemResponse{}, err
		}
	} else {
		s.invalidate(ctx, feedbackID)
	}

	s.record(ctx, models.EventItemCreated, item, actor)
	return s.respondOne(ctx, feedbackID, item.ID)
}

func (s *itemService) Update(ctx context.Context, feedbackID, itemID uint, req dto.ItemUpdateRequest, actor Actor) (dto.ItemResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ItemResponse{}, err
	}
	item, err := s.item(ctx, feedbackID, itemID)
	if err != nil {
		return dto.ItemResponse{}, err
	}
	if item.IsPagebreak() {
		return dto.ItemResponse{}, fmt.Errorf("%w: pagebreaks have no attributes", ErrInvalidItem)
	}
	if err := s.applyFields(ctx, &item, req.ItemFields); err != nil {
		return dto.ItemResponse{}, err
	}
	if err := s.stores.Items.Update(ctx, &item); err != nil {
		return dto.ItemResponse{}, err
	}

	s.record(ctx, models.EventItemUpdated, item, actor)
	s.invalidate(ctx, feedbackID)
	return s.respondOne(ctx, feedbackID, item.ID)
}

func (s *itemService) Delete(ctx context.Context, feedbackID, itemID uint, actor Actor) error {
	item, err := s.item(ctx, feedbackID, itemID)
	if err != nil {
		return err
	}
	if err := s.stores.Items.Delete(ctx, item.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrItemNotFound
		}
		return err
	}

	if item.IsGraded {
		if err := s.marks.Recalculate(ctx, feedbackID); err != nil {
			return err
		}
	}
	s.record(ctx, models.EventItemDeleted, item, actor)
	s.invalidate(ctx, feedbackID)
	return nil
}

// move places itemID at a 1-based position, shifting the others.
func (s *itemService) move(ctx context.Context, feedbackID, itemID uint, position int) ([]dto.ItemResponse, error) {
	list, err := s.items(ctx, feedbackID)
	if err != nil {
		return nil, err
	}
	order := make([]uint, 0, len(list))
	for _, item := range list {
		if item.ID != itemID {
			order = append(order, item.ID)
		}
	}
	if len(order) == len(list) {
		return nil, ErrItemNotFound
	}

	index := position - 1
	if index < 0 {
		index = 0
	}
	if index > len(order) {
		index = len(order)
	}
	order = append(order, 0)
	copy(order[index+1:], order[index:])
	order[index] = itemID

	if err := s.stores.Items.SavePositions(ctx, repository.ItemOwner{FeedbackID: feedbackID}, order); err != nil {
		return nil, err
	}
	s.invalidate(ctx, feedbackID)
	return s.respondAll(ctx, feedbackID)
}

func (s *itemService) MoveUp(ctx context.Context, feedbackID, itemID uint) ([]dto.ItemResponse, error) {
	item, err := s.item(ctx, feedbackID, itemID)
	if err != nil {
		return nil, err
	}
	if item.Position <= 1 {
		return s.respondAll(ctx, feedbackID)
	}
	return s.move(ctx, feedbackID, itemID, item.Position-1)
}

func (s *itemService) MoveDown(ctx context.Context, feedbackID, itemID uint) ([]dto.ItemResponse, error) {
	item, err := s.item(ctx, feedbackID, itemID)
	if err != nil {
		return nil, err
	}
	return s.move(ctx, feedbackID, itemID, item.Position+1)
}

func (s *itemService) MoveTo(ctx context.Context, feedbackID, itemID uint, req dto.ItemMoveRequest) ([]dto.ItemResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if _, err := s.item(ctx, feedbackID, itemID); err != nil {
		return nil, err
	}
	return s.move(ctx, feedbackID, itemID, req.Position)
}

func (s *itemService) SaveOrder(ctx context.Context, feedbackID uint, req dto.ItemOrderRequest) ([]dto.ItemResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if _, err := s.feedback(ctx, feedbackID); err != nil {
		return nil, err
	}
	if err := s.stores.Items.SavePositions(ctx, repository.ItemOwner{FeedbackID: feedbackID}, req.ItemIDs); err != nil {
		return nil, err
	}
	s.invalidate(ctx, feedbackID)
	return s.respondAll(ctx, feedbackID)
}

func (s *itemService) SwitchRequired(ctx context.Context, feedbackID, itemID uint) (dto.ItemResponse, error) {
	item, err := s.item(ctx, feedbackID, itemID)
	if err != nil {
		return dto.ItemResponse{}, err
	}
	typ, err := items.Lookup(item.Typ)
	if err != nil {
		return dto.ItemResponse{}, fmt.Errorf("%w: %s", ErrUnknownItemType, item.Typ)
	}
	if !typ.CanSwitchRequire() {
		return dto.ItemResponse{}, fmt.Errorf("%w: %s items cannot be required", ErrInvalidItem, item.Typ)
	}
	item.Required = !item.Required
	if err := s.stores.Items.Update(ctx, &item); err != nil {
		return dto.ItemResponse{}, err
	}
	s.invalidate(ctx, feedbackID)
	return s.respondOne(ctx, feedbackID, item.ID)
}

func (s *itemService) CreatePagebreak(ctx context.Context, feedbackID uint, actor Actor) (dto.ItemResponse, error) {
	if _, err := s.feedback(ctx, feedbackID); err != nil {
		return dto.ItemResponse{}, err
	}
	count, err := s.stores.Items.Count(ctx, repository.ItemOwner{FeedbackID: feedbackID})
	if err != nil {
		return dto.ItemResponse{}, err
	}
	breaks, err := s.stores.Items.BreakPositions(ctx, feedbackID)
	if err != nil {
		return dto.ItemResponse{}, err
	}
	if len(breaks) > 0 && breaks[len(breaks)-1] == int(count) {
		return dto.ItemResponse{}, ErrPagebreakExists
	}

	item := models.Item{FeedbackID: feedbackID, Typ: models.ItemTypePagebreak, Position: int(count) + 1}
	if err := s.stores.Items.Create(ctx, &item); err != nil {
		return dto.ItemResponse{}, err
	}
	s.record(ctx, models.EventItemCreated, item, actor)
	s.invalidate(ctx, feedbackID)
	return s.respondOne(ctx, feedbackID, item.ID)
}

func (s *itemService) DependCandidates(ctx context.Context, feedbackID, itemID uint) ([]dto.DependCandidateResponse, error) {
	if _, err := s.feedback(ctx, feedbackID); err != nil {
		return nil, err
	}
	list, err := s.items(ctx, feedbackID)
	if err != nil {
		return nil, err
	}
	candidates := make([]dto.DependCandidateResponse, 0, len(list))
	for _, item := range list {
		if item.ID == itemID || item.IsPagebreak() || !item.HasValue || strings.TrimSpace(item.Label) == "" {
			continue
		}
		typ, err := items.Lookup(item.Typ)
		if err != nil || !typ.DependCandidate() {
			continue
		}
		candidates = append(candidates, dto.DependCandidateResponse{ID: item.ID, Label: item.Label})
	}
	return candidates, nil
}

func (s *itemService) SetGradedAnswer(ctx context.Context, feedbackID, itemID uint, req dto.GradedAnswerRequest) (dto.ItemResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ItemResponse{}, err
	}
	item, err := s.item(ctx, feedbackID, itemID)
	if err != nil {
		return dto.ItemResponse{}, err
	}
	typ, err := items.Lookup(item.Typ)
	if err != nil {
		return dto.ItemResponse{}, fmt.Errorf("%w: %s", ErrUnknownItemType, item.Typ)
	}
	if !item.HasValue {
		return dto.ItemResponse{}, fmt.Errorf("%w: %s items cannot be graded", ErrInvalidItem, item.Typ)
	}
	answer, err := typ.CleanValue(item, []string{req.Answer})
	if err != nil || typ.IsEmptyValue(item, answer) {
		return dto.ItemResponse{}, fmt.Errorf("%w: answer %q is not a valid response", ErrInvalidItem, req.Answer)
	}

	question := models.GradedQuestion{ItemID: item.ID, Answer: answer, Grade: req.Grade}
	if err := s.stores.Items.SaveGradedQuestion(ctx, &question); err != nil {
		return dto.ItemResponse{}, err
	}
	if err := s.marks.Recalculate(ctx, feedbackID); err != nil {
		return dto.ItemResponse{}, err
	}
	s.invalidate(ctx, feedbackID)
	s.logger.Info().Uint("item_id", item.ID).Float64("grade", req.Grade).Msg("graded answer saved")
	return s.respondOne(ctx, feedbackID, item.ID)
}

func (s *itemService) record(ctx context.Context, event string, item models.Item, actor Actor) {
	s.events.Record(ctx, FeedbackEvent{
		Name:       event,
		FeedbackID: item.FeedbackID,
		UserID:     actor.UserID,
		ObjectID:   item.ID,
		Metadata:   map[string]interface{}{"typ": item.Typ, "position": item.Position},
	})
}

func (s *itemService) invalidate(ctx context.Context, feedbackID uint) {
	if s.analysis != nil {
		s.analysis.Invalidate(ctx, feedbackID)
	}
}

package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-feedback-api/internal/dto"
	"github.com/noah-isme/gema-feedback-api/internal/items"
	"github.com/noah-isme/gema-feedback-api/internal/models"
	"github.com/noah-isme/gema-feedback-api/internal/repository"
)

// ResponsesService lets facilitators review and manage submitted responses.
type ResponsesService interface {
	ResponsesAnalysis(ctx context.Context, scope Scope, query dto.ResponsesQuery) (dto.ResponsesAnalysisResponse, error)
	Get(ctx context.Context, feedbackID, completedID uint) (dto.CompletedDetailResponse, error)
	Delete(ctx context.Context, feedbackID, completedID uint, actor Actor) error
	DeleteAll(ctx context.Context, feedbackID uint, actor Actor) (dto.DeleteAllResponse, error)
	NonRespondents(ctx context.Context, scope Scope, query dto.NonRespondentsQuery) (dto.NonRespondentsResponse, error)
	ExportCSV(ctx context.Context, scope Scope, groupID uint, w io.Writer) error
}

type responsesService struct {
	stores    Stores
	settings  Settings
	validator *validator.Validate
	events    EventRecorder
	analysis  AnalysisInvalidator
	logger    zerolog.Logger
}

// NewResponsesService builds the responses service.
func NewResponsesService(stores Stores, settings Settings, validate *validator.Validate, events EventRecorder, analysis AnalysisInvalidator, logger zerolog.Logger) ResponsesService {
	return &responsesService{
		stores:    stores,
		settings:  settings.withDefaults(),
		validator: validate,
		events:    eventsOrNop(events),
		analysis:  analysis,
		logger:    logger.With().Str("component", "responses_service").Logger(),
	}
}

type printer struct {
	items []models.Item
	types map[string]items.Type
}

func newPrinter(list []models.Item) printer {
	p := printer{items: list, types: make(map[string]items.Type)}
	for _, item := range list {
		if typ, err := items.Lookup(item.Typ); err == nil {
			p.types[item.Typ] = typ
		}
	}
	return p
}

func (p printer) answers(values []models.Value) []dto.AnsweredValue {
	byItem := make(map[uint]string, len(values))
	for _, value := range values {
		byItem[value.ItemID] = value.Value
	}
	answers := make([]dto.AnsweredValue, 0, len(p.items))
	for _, item := range p.items {
		raw := byItem[item.ID]
		printable := raw
		if typ, ok := p.types[item.Typ]; ok {
			printable = typ.PrintableValue(item, raw)
		}
		answers = append(answers, dto.AnsweredValue{ID: item.ID, Name: item.Name, PrintVal: printable, RawVal: raw})
	}
	return answers
}

func groupValues(values []models.Value) map[uint][]models.Value {
	grouped := make(map[uint][]models.Value)
	for _, value := range values {
		grouped[value.CompletedID] = append(grouped[value.CompletedID], value)
	}
	return grouped
}

func completedIDs(list []models.Completed) []uint {
	ids := make([]uint, 0, len(list))
	for _, completed := range list {
		ids = append(ids, completed.ID)
	}
	return ids
}

func (s *responsesService) userNames(ctx context.Context, list []models.Completed) (map[uint]string, error) {
	ids := make([]uint, 0, len(list))
	for _, completed := range list {
		if completed.UserID > 0 {
			ids = append(ids, completed.UserID)
		}
	}
	names := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	users, err := s.stores.Courses.ListUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		names[user.ID] = user.FullName()
	}
	return names, nil
}

func (s *responsesService) ResponsesAnalysis(ctx context.Context, scope Scope, query dto.ResponsesQuery) (dto.ResponsesAnalysisResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.ResponsesAnalysisResponse{}, err
	}
	if !repository.ValidCompletedSort(query.Sort) {
		return dto.ResponsesAnalysisResponse{}, fmt.Errorf("%w: unsupported sort %q", ErrInvalidRequest, query.Sort)
	}
	structure, err := loadStructure(ctx, s.stores, s.settings, scope)
	if err != nil {
		return dto.ResponsesAnalysisResponse{}, err
	}
	if err := structure.ShuffleAnonymResponses(ctx); err != nil {
		return dto.ResponsesAnalysisResponse{}, err
	}
	valueItems, err := structure.Items(ctx, true)
	if err != nil {
		return dto.ResponsesAnalysisResponse{}, err
	}
	p := newPrinter(valueItems)

	base := repository.CompletedFilter{
		FeedbackID: structure.Feedback().ID,
		GroupID:    query.GroupID,
		CourseID:   structure.CourseID(),
		Page:       query.Page + 1,
		PageSize:   query.PerPage,
	}
	response := dto.ResponsesAnalysisResponse{
		Attempts:     []dto.AttemptResponse{},
		AnonAttempts: []dto.AnonAttemptResponse{},
		Warnings:     []dto.Warning{},
	}

	identified := base
	identified.Anonymous = models.AnonymousNo
	identified.Sort = query.Sort
	attempts, total, err := s.stores.Completeds.List(ctx, identified)
	if err != nil {
		return dto.ResponsesAnalysisResponse{}, err
	}
	response.TotalAttempts = total

	anonymous := base
	anonymous.Anonymous = models.AnonymousYes
	anonymous.Sort = "random_response"
	anonAttempts, anonTotal, err := s.stores.Completeds.List(ctx, anonymous)
	if err != nil {
		return dto.ResponsesAnalysisResponse{}, err
	}
	response.TotalAnonAttempts = anonTotal

	values, err := s.stores.Completeds.ListValues(ctx, append(completedIDs(attempts), completedIDs(anonAttempts)...))
	if err != nil {
		return dto.ResponsesAnalysisResponse{}, err
	}
	grouped := groupValues(values)
	names, err := s.userNames(ctx, attempts)
	if err != nil {
		return dto.ResponsesAnalysisResponse{}, err
	}

	for _, attempt := range attempts {
		response.Attempts = append(response.Attempts, dto.AttemptResponse{
			ID:           attempt.ID,
			CourseID:     attempt.CourseID,
			UserID:       attempt.UserID,
			TimeModified: attempt.TimeModified,
			FullName:     names[attempt.UserID],
			Mark:         attempt.Mark,
			Responses:    p.answers(grouped[attempt.ID]),
		})
	}
	for _, attempt := range anonAttempts {
		response.AnonAttempts = append(response.AnonAttempts, dto.AnonAttemptResponse{
			ID:        attempt.ID,
			CourseID:  attempt.CourseID,
			Number:    attempt.RandomResponse,
			Mark:      attempt.Mark,
			Responses: p.answers(grouped[attempt.ID]),
		})
	}
	return response, nil
}

func (s *responsesService) completed(ctx context.Context, feedbackID, completedID uint) (models.Completed, error) {
	completed, err := s.stores.Completeds.GetByID(ctx, completedID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Completed{}, ErrCompletedNotFound
		}
		return models.Completed{}, err
	}
	if completed.FeedbackID != feedbackID {
		return models.Completed{}, ErrCompletedNotFound
	}
	return completed, nil
}

func (s *responsesService) Get(ctx context.Context, feedbackID, completedID uint) (dto.CompletedDetailResponse, error) {
	completed, err := s.completed(ctx, feedbackID, completedID)
	if err != nil {
		return dto.CompletedDetailResponse{}, err
	}
	list, err := s.stores.Items.List(ctx, repository.ItemOwner{FeedbackID: feedbackID})
	if err != nil {
		return dto.CompletedDetailResponse{}, err
	}
	valueItems := make([]models.Item, 0, len(list))
	for _, item := range list {
		if item.HasValue {
			valueItems = append(valueItems, item)
		}
	}

	detail := dto.CompletedDetailResponse{
		Completed: dto.NewCompletedResponse(completed),
		Responses: newPrinter(valueItems).answers(completed.Values),
	}
	if completed.AnonymousResponse == models.AnonymousYes {
		detail.Completed.UserID = 0
		return detail, nil
	}
	if user, err := s.stores.Courses.GetUser(ctx, completed.UserID); err == nil {
		detail.FullName = user.FullName()
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.CompletedDetailResponse{}, err
	}
	return detail, nil
}

func (s *responsesService) Delete(ctx context.Context, feedbackID, completedID uint, actor Actor) error {
	completed, err := s.completed(ctx, feedbackID, completedID)
	if err != nil {
		return err
	}
	if err := s.stores.Completeds.Delete(ctx, completed.ID); err != nil {
		return err
	}
	if s.analysis != nil {
		s.analysis.Invalidate(ctx, feedbackID)
	}
	s.events.Record(ctx, FeedbackEvent{
		Name:       models.EventResponseDeleted,
		FeedbackID: feedbackID,
		CourseID:   completed.CourseID,
		UserID:     actor.UserID,
		ObjectID:   completed.ID,
	})
	s.logger.Info().Uint("feedback_id", feedbackID).Uint("completed_id", completed.ID).Msg("response deleted")
	return nil
}

func (s *responsesService) DeleteAll(ctx context.Context, feedbackID uint, actor Actor) (dto.DeleteAllResponse, error) {
	if _, err := s.stores.Feedbacks.GetByID(ctx, feedbackID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.DeleteAllResponse{}, ErrFeedbackNotFound
		}
		return dto.DeleteAllResponse{}, err
	}
	deleted, err := s.stores.Completeds.DeleteAll(ctx, feedbackID)
	if err != nil {
		return dto.DeleteAllResponse{}, err
	}
	if s.analysis != nil {
		s.analysis.Invalidate(ctx, feedbackID)
	}
	s.events.Record(ctx, FeedbackEvent{
		Name:       models.EventResponseDeleted,
		FeedbackID: feedbackID,
		UserID:     actor.UserID,
		Metadata:   map[string]interface{}{"deleted": deleted},
	})
	s.logger.Info().Uint("feedback_id", feedbackID).Int64("deleted", deleted).Msg("all responses deleted")
	return dto.DeleteAllResponse{Deleted: deleted}, nil
}

// NonRespondents lists enrolled students of the feedback course without a
// submitted response. Anonymous and site feedbacks cannot be tracked.
func (s *responsesService) NonRespondents(ctx context.Context, scope Scope, query dto.NonRespondentsQuery) (dto.NonRespondentsResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.NonRespondentsResponse{}, err
	}
	structure, err := loadStructure(ctx, s.stores, s.settings, scope)
	if err != nil {
		return dto.NonRespondentsResponse{}, err
	}
	if structure.IsAnonymous() {
		return dto.NonRespondentsResponse{}, ErrAnonymousFeedback
	}
	if structure.IsSiteFeedback() {
		return dto.NonRespondentsResponse{}, ErrSiteFeedback
	}

	feedbackID := structure.Feedback().ID
	respondents, err := s.stores.Completeds.UserIDs(ctx, feedbackID)
	if err != nil {
		return dto.NonRespondentsResponse{}, err
	}
	started, err := s.stores.Staging.StartedUserIDs(ctx, feedbackID)
	if err != nil {
		return dto.NonRespondentsResponse{}, err
	}
	startedSet := make(map[uint]bool, len(started))
	for _, id := range started {
		startedSet[id] = true
	}

	perPage := query.PerPage
	if perPage <= 0 {
		perPage = s.settings.DefaultPageCount
	}
	sortBy := query.Sort
	if sortBy == "" {
		sortBy = "lastaccess"
	}
	enrolments, total, err := s.stores.Courses.ListEnrolments(ctx, repository.EnrolmentFilter{
		CourseID:       structure.Feedback().CourseID,
		Roles:          []string{models.RoleStudent},
		GroupID:        query.GroupID,
		ExcludeUserIDs: respondents,
		Sort:           sortBy,
		Offset:         query.Page * perPage,
		Limit:          perPage,
	})
	if err != nil {
		return dto.NonRespondentsResponse{}, err
	}

	response := dto.NonRespondentsResponse{Users: make([]dto.NonRespondent, 0, len(enrolments)), Total: total, Warnings: []dto.Warning{}}
	for _, enrolment := range enrolments {
		response.Users = append(response.Users, dto.NonRespondent{
			CourseID: enrolment.CourseID,
			UserID:   enrolment.UserID,
			FullName: enrolment.User.FullName(),
			Started:  startedSet[enrolment.UserID],
		})
	}
	return response, nil
}

// ExportCSV writes every response visible in the scope as one CSV row per response.
func (s *responsesService) ExportCSV(ctx context.Context, scope Scope, groupID uint, w io.Writer) error {
	structure, err := loadStructure(ctx, s.stores, s.settings, scope)
	if err != nil {
		return err
	}
	if err := structure.ShuffleAnonymResponses(ctx); err != nil {
		return err
	}
	valueItems, err := structure.Items(ctx, true)
	if err != nil {
		return err
	}
	p := newPrinter(valueItems)

	list, _, err := s.stores.Completeds.List(ctx, repository.CompletedFilter{
		FeedbackID: structure.Feedback().ID,
		GroupID:    groupID,
		CourseID:   structure.CourseID(),
		Sort:       "time_modified",
	})
	if err != nil {
		return err
	}
	values, err := s.stores.Completeds.ListValues(ctx, completedIDs(list))
	if err != nil {
		return err
	}
	grouped := groupValues(values)
	names, err := s.userNames(ctx, list)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	header := []string{"response", "fullname", "course", "timemodified", "mark"}
	for _, item := range valueItems {
		column := item.Label
		if column == "" {
			column = item.Name
		}
		header = append(header, column)
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, completed := range list {
		identity := strconv.FormatUint(uint64(completed.ID), 10)
		fullName := names[completed.UserID]
		if completed.AnonymousResponse == models.AnonymousYes {
			identity = fmt.Sprintf("anonymous %d", completed.RandomResponse)
			fullName = ""
		}
		row := []string{
			identity,
			fullName,
			strconv.FormatUint(uint64(completed.CourseID), 10),
			completed.TimeModified.UTC().Format(time.RFC3339),
			strconv.FormatFloat(completed.Mark, 'f', 2, 64),
		}
		for _, answer := range p.answers(grouped[completed.ID]) {
			row = append(row, answer.PrintVal)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

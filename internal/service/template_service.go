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
	"github.com/noah-isme/gema-feedback-api/internal/models"
	"github.com/noah-isme/gema-feedback-api/internal/repository"
)

// TemplateService manages reusable item sets.
type TemplateService interface {
	SaveAsTemplate(ctx context.Context, feedbackID uint, req dto.TemplateCreateRequest) (dto.TemplateResponse, error)
	Apply(ctx context.Context, feedbackID uint, req dto.TemplateApplyRequest, actor Actor) ([]dto.ItemResponse, error)
	List(ctx context.Context, courseID uint, scope string) ([]dto.TemplateResponse, error)
	Items(ctx context.Context, templateID uint) ([]dto.ItemResponse, error)
	Delete(ctx context.Context, templateID uint) error
}

type templateService struct {
	stores    Stores
	validator *validator.Validate
	events    EventRecorder
	analysis  AnalysisInvalidator
	marks     *markCalculator
	logger    zerolog.Logger
}

// NewTemplateService builds the template service.
func NewTemplateService(stores Stores, validate *validator.Validate, events EventRecorder, analysis AnalysisInvalidator, logger zerolog.Logger) TemplateService {
	return &templateService{
		stores:    stores,
		validator: validate,
		events:    eventsOrNop(events),
		analysis:  analysis,
		marks:     newMarkCalculator(stores),
		logger:    logger.With().Str("component", "template_service").Logger(),
	}
}

func (s *templateService) template(ctx context.Context, templateID uint) (models.Template, error) {
	template, err := s.stores.Templates.GetByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Template{}, ErrTemplateNotFound
		}
		return models.Template{}, err
	}
	return template, nil
}

func (s *templateService) SaveAsTemplate(ctx context.Context, feedbackID uint, req dto.TemplateCreateRequest) (dto.TemplateResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.TemplateResponse{}, err
	}
	feedback, err := s.stores.Feedbacks.GetByID(ctx, feedbackID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TemplateResponse{}, ErrFeedbackNotFound
		}
		return dto.TemplateResponse{}, err
	}

	source, err := s.stores.Items.List(ctx, repository.ItemOwner{FeedbackID: feedbackID})
	if err != nil {
		return dto.TemplateResponse{}, err
	}
	if len(source) == 0 {
		return dto.TemplateResponse{}, ErrFeedbackEmpty
	}

	template := models.Template{
		CourseID: feedback.CourseID,
		Name:     strings.TrimSpace(req.Name),
		IsPublic: req.IsPublic,
	}
	if err := s.stores.Templates.Create(ctx, &template); err != nil {
		return dto.TemplateResponse{}, err
	}
	if _, err := s.stores.Items.CopyItems(ctx, source, repository.ItemOwner{TemplateID: template.ID}, 0); err != nil {
		return dto.TemplateResponse{}, err
	}

	s.logger.Info().Uint("template_id", template.ID).Uint("feedback_id", feedbackID).Int("items", len(source)).Msg("template saved")
	return dto.NewTemplateResponse(template), nil
}

// Apply copies the template items into the feedback. With DeleteOld the
// existing items and every response are removed first, otherwise the items
// are appended after the current ones.
func (s *templateService) Apply(ctx context.Context, feedbackID uint, req dto.TemplateApplyRequest, actor Actor) ([]dto.ItemResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if _, err := s.stores.Feedbacks.GetByID(ctx, feedbackID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFeedbackNotFound
		}
		return nil, err
	}
	template, err := s.template(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	applied, err := s.stores.Items.ApplyTemplate(ctx, template.ID, feedbackID, req.DeleteOld)
	if err != nil {
		return nil, err
	}
	if err := s.marks.Recalculate(ctx, feedbackID); err != nil {
		return nil, err
	}
	if s.analysis != nil {
		s.analysis.Invalidate(ctx, feedbackID)
	}

	s.events.Record(ctx, FeedbackEvent{
		Name:       models.EventTemplateApplied,
		FeedbackID: feedbackID,
		UserID:     actor.UserID,
		ObjectID:   template.ID,
		Metadata:   map[string]interface{}{"delete_old": req.DeleteOld, "items": len(applied)},
	})

	list, err := s.stores.Items.List(ctx, repository.ItemOwner{FeedbackID: feedbackID})
	if err != nil {
		return nil, err
	}
	return dto.NewItemResponseSlice(list), nil
}

func (s *templateService) List(ctx context.Context, courseID uint, scope string) ([]dto.TemplateResponse, error) {
	switch scope {
	case repository.TemplateScopeAll, repository.TemplateScopeOwn, repository.TemplateScopePublic:
	default:
		return nil, fmt.Errorf("%w: scope must be own or public", ErrInvalidRequest)
	}
	templates, err := s.stores.Templates.List(ctx, courseID, scope)
	if err != nil {
		return nil, err
	}
	return dto.NewTemplateResponseSlice(templates), nil
}

func (s *templateService) Items(ctx context.Context, templateID uint) ([]dto.ItemResponse, error) {
	if _, err := s.template(ctx, templateID); err != nil {
		return nil, err
	}
	list, err := s.stores.Items.List(ctx, repository.ItemOwner{TemplateID: templateID})
	if err != nil {
		return nil, err
	}
	return dto.NewItemResponseSlice(list), nil
}

func (s *templateService) Delete(ctx context.Context, templateID uint) error {
	if err := s.stores.Templates.Delete(ctx, templateID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTemplateNotFound
		}
		return err
	}
	s.logger.Info().Uint("template_id", templateID).Msg("template deleted")
	return nil
}

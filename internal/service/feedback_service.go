package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-feedback-api/internal/dto"
	"github.com/noah-isme/gema-feedback-api/internal/items"
	"github.com/noah-isme/gema-feedback-api/internal/models"
	"github.com/noah-isme/gema-feedback-api/internal/repository"
)

// FeedbackService manages feedback activities and their site course mapping.
type FeedbackService interface {
	Create(ctx context.Context, req dto.FeedbackCreateRequest, actor Actor) (dto.FeedbackResponse, error)
	Get(ctx context.Context, feedbackID uint) (dto.FeedbackResponse, error)
	ListByCourse(ctx context.Context, courseID uint) ([]dto.FeedbackResponse, error)
	Update(ctx context.Context, feedbackID uint, req dto.FeedbackUpdateRequest, actor Actor) (dto.FeedbackResponse, error)
	Delete(ctx context.Context, feedbackID uint) error
	CourseMap(ctx context.Context, feedbackID uint) ([]dto.CourseResponse, error)
	ReplaceCourseMap(ctx context.Context, feedbackID uint, req dto.CourseMapRequest) ([]dto.CourseResponse, error)
	ListForCourse(ctx context.Context, courseID uint) ([]dto.FeedbackResponse, error)
	Events(ctx context.Context, feedbackID uint, query dto.EventLogQuery) (dto.EventLogListResponse, error)
}

type feedbackService struct {
	stores    Stores
	settings  Settings
	validator *validator.Validate
	events    EventRecorder
	analysis  AnalysisInvalidator
	logger    zerolog.Logger
}

// NewFeedbackService builds the feedback service.
func NewFeedbackService(stores Stores, settings Settings, validate *validator.Validate, events EventRecorder, analysis AnalysisInvalidator, logger zerolog.Logger) FeedbackService {
	return &feedbackService{
		stores:    stores,
		settings:  settings.withDefaults(),
		validator: validate,
		events:    eventsOrNop(events),
		analysis:  analysis,
		logger:    logger.With().Str("component", "feedback_service").Logger(),
	}
}

func (s *feedbackService) feedback(ctx context.Context, feedbackID uint) (models.Feedback, error) {
	feedback, err := s.stores.Feedbacks.GetByID(ctx, feedbackID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Feedback{}, ErrFeedbackNotFound
		}
		return models.Feedback{}, err
	}
	return feedback, nil
}

func validSchedule(feedback models.Feedback) error {
	if feedback.TimeOpen != nil && feedback.TimeClose != nil && !feedback.TimeClose.After(*feedback.TimeOpen) {
		return ErrInvalidSchedule
	}
	return nil
}

func (s *feedbackService) Create(ctx context.Context, req dto.FeedbackCreateRequest, actor Actor) (dto.FeedbackResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.FeedbackResponse{}, err
	}
	if _, err := s.stores.Courses.GetCourse(ctx, req.CourseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.FeedbackResponse{}, fmt.Errorf("%w: course %d not found", ErrInvalidRequest, req.CourseID)
		}
		return dto.FeedbackResponse{}, err
	}

	anonymous := req.Anonymous
	if anonymous == 0 {
		anonymous = models.AnonymousNo
	}
	feedback := models.Feedback{
		CourseID:          req.CourseID,
		Name:              strings.TrimSpace(req.Name),
		Intro:             items.SanitizeHTML(req.Intro),
		Anonymous:         anonymous,
		MultipleSubmit:    req.MultipleSubmit,
		AutoNumbering:     req.AutoNumbering,
		EmailNotification: req.EmailNotification,
		PublishStats:      req.PublishStats,
		PageAfterSubmit:   items.SanitizeHTML(req.PageAfterSubmit),
		SiteAfterSubmit:   strings.TrimSpace(req.SiteAfterSubmit),
		TimeOpen:          req.TimeOpen,
		TimeClose:         req.TimeClose,
		CompletionSubmit:  req.CompletionSubmit,
	}
	if err := validSchedule(feedback); err != nil {
		return dto.FeedbackResponse{}, err
	}
	if err := s.stores.Feedbacks.Create(ctx, &feedback); err != nil {
		return dto.FeedbackResponse{}, err
	}

	s.logger.Info().Uint("feedback_id", feedback.ID).Uint("course_id", feedback.CourseID).Uint("user_id", actor.UserID).Msg("feedback created")
	return dto.NewFeedbackResponse(feedback), nil
}

func (s *feedbackService) Get(ctx context.Context, feedbackID uint) (dto.FeedbackResponse, error) {
	feedback, err := s.feedback(ctx, feedbackID)
	if err != nil {
		return dto.FeedbackResponse{}, err
	}
	return dto.NewFeedbackResponse(feedback), nil
}

func (s *feedbackService) ListByCourse(ctx context.Context, courseID uint) ([]dto.FeedbackResponse, error) {
	feedbacks, err := s.stores.Feedbacks.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return dto.NewFeedbackResponseSlice(feedbacks), nil
}

func (s *feedbackService) Update(ctx context.Context, feedbackID uint, req dto.FeedbackUpdateRequest, actor Actor) (dto.FeedbackResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.FeedbackResponse{}, err
	}
	feedback, err := s.feedback(ctx, feedbackID)
	if err != nil {
		return dto.FeedbackResponse{}, err
	}

	changed := make([]string, 0)
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return dto.FeedbackResponse{}, fmt.Errorf("%w: name cannot be empty", ErrInvalidRequest)
		}
		feedback.Name = name
		changed = append(changed, "name")
	}
	if req.Intro != nil {
		feedback.Intro = items.SanitizeHTML(*req.Intro)
		changed = append(changed, "intro")
	}
	if req.Anonymous != nil {
		feedback.Anonymous = *req.Anonymous
		changed = append(changed, "anonymous")
	}
	if req.MultipleSubmit != nil {
		feedback.MultipleSubmit = *req.MultipleSubmit
		changed = append(changed, "multiple_submit")
	}
	if req.AutoNumbering != nil {
		feedback.AutoNumbering = *req.AutoNumbering
		changed = append(changed, "autonumbering")
	}
	if req.EmailNotification != nil {
		feedback.EmailNotification = *req.EmailNotification
		changed = append(changed, "email_notification")
	}
	if req.PublishStats != nil {
		feedback.PublishStats = *req.PublishStats
		changed = append(changed, "publish_stats")
	}
	if req.PageAfterSubmit != nil {
		feedback.PageAfterSubmit = items.SanitizeHTML(*req.PageAfterSubmit)
		changed = append(changed, "page_after_submit")
	}
	if req.SiteAfterSubmit != nil {
		feedback.SiteAfterSubmit = strings.TrimSpace(*req.SiteAfterSubmit)
		changed = append(changed, "site_after_submit")
	}
	if req.CompletionSubmit != nil {
		feedback.CompletionSubmit = *req.CompletionSubmit
		changed = append(changed, "completion_submit")
	}
	switch {
	case req.ClearTimeOpen:
		feedback.TimeOpen = nil
		changed = append(changed, "time_open")
	case req.TimeOpen != nil:
		feedback.TimeOpen = req.TimeOpen
		changed = append(changed, "time_open")
	}
	switch {
	case req.ClearTimeClose:
		feedback.TimeClose = nil
		changed = append(changed, "time_close")
	case req.TimeClose != nil:
		feedback.TimeClose = req.TimeClose
		changed = append(changed, "time_close")
	}
	if err := validSchedule(feedback); err != nil {
		return dto.FeedbackResponse{}, err
	}

	if err := s.stores.Feedbacks.Update(ctx, &feedback); err != nil {
		return dto.FeedbackResponse{}, err
	}
	if s.analysis != nil {
		s.analysis.Invalidate(ctx, feedback.ID)
	}
	s.events.Record(ctx, FeedbackEvent{
		Name:       models.EventFeedbackUpdated,
		FeedbackID: feedback.ID,
		CourseID:   feedback.CourseID,
		UserID:     actor.UserID,
		Metadata:   map[string]interface{}{"fields": changed},
	})
	return dto.NewFeedbackResponse(feedback), nil
}

func (s *feedbackService) Delete(ctx context.Context, feedbackID uint) error {
	if err := s.stores.Feedbacks.Delete(ctx, feedbackID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFeedbackNotFound
		}
		return err
	}
	if s.analysis != nil {
		s.analysis.Invalidate(ctx, feedbackID)
	}
	s.logger.Info().Uint("feedback_id", feedbackID).Msg("feedback deleted")
	return nil
}

func (s *feedbackService) mappedCourses(ctx context.Context, feedbackID uint) ([]dto.CourseResponse, error) {
	ids, err := s.stores.Feedbacks.ListMappedCourses(ctx, feedbackID)
	if err != nil {
		return nil, err
	}
	courses, err := s.stores.Courses.ListCourses(ctx, ids)
	if err != nil {
		return nil, err
	}
	return dto.NewCourseResponseSlice(courses), nil
}

func (s *feedbackService) CourseMap(ctx context.Context, feedbackID uint) ([]dto.CourseResponse, error) {
	if _, err := s.feedback(ctx, feedbackID); err != nil {
		return nil, err
	}
	return s.mappedCourses(ctx, feedbackID)
}

// ReplaceCourseMap restricts a site feedback to the given courses. An empty
// list offers it in every course again.
func (s *feedbackService) ReplaceCourseMap(ctx context.Context, feedbackID uint, req dto.CourseMapRequest) ([]dto.CourseResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	feedback, err := s.feedback(ctx, feedbackID)
	if err != nil {
		return nil, err
	}
	if feedback.CourseID != s.settings.SiteCourseID {
		return nil, ErrNotSiteFeedback
	}

	seen := make(map[uint]bool, len(req.CourseIDs))
	ids := make([]uint, 0, len(req.CourseIDs))
	for _, id := range req.CourseIDs {
		if id == s.settings.SiteCourseID || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if err := s.stores.Feedbacks.ReplaceCourseMap(ctx, feedbackID, ids); err != nil {
		return nil, err
	}
	s.logger.Info().Uint("feedback_id", feedbackID).Int("courses", len(ids)).Msg("course map replaced")
	return s.mappedCourses(ctx, feedbackID)
}

// ListForCourse returns the feedbacks of a course followed by the site
// feedbacks offered in it.
func (s *feedbackService) ListForCourse(ctx context.Context, courseID uint) ([]dto.FeedbackResponse, error) {
	own, err := s.stores.Feedbacks.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if courseID == s.settings.SiteCourseID {
		return dto.NewFeedbackResponseSlice(own), nil
	}
	site, err := s.stores.Feedbacks.ListForMappedCourse(ctx, s.settings.SiteCourseID, courseID)
	if err != nil {
		return nil, err
	}
	return dto.NewFeedbackResponseSlice(append(own, site...)), nil
}

func (s *feedbackService) Events(ctx context.Context, feedbackID uint, query dto.EventLogQuery) (dto.EventLogListResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.EventLogListResponse{}, err
	}
	if _, err := s.feedback(ctx, feedbackID); err != nil {
		return dto.EventLogListResponse{}, err
	}
	page := maxInt(query.Page, 1)
	pageSize := clampPageSize(query.PageSize)

	entries, total, err := s.stores.Events.List(ctx, repository.EventLogFilter{
		FeedbackID: feedbackID,
		Event:      strings.TrimSpace(query.Event),
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		return dto.EventLogListResponse{}, err
	}

	response := dto.EventLogListResponse{
		Items:      make([]dto.EventLogEntry, 0, len(entries)),
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}
	for _, entry := range entries {
		response.Items = append(response.Items, dto.NewEventLogEntry(entry))
	}
	return response, nil
}

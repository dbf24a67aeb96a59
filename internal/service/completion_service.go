package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-feedback-api/internal/dto"
	"github.com/noah-isme/gema-feedback-api/internal/models"
	"github.com/noah-isme/gema-feedback-api/internal/observability"
)

// AnalysisInvalidator drops cached analysis after responses change.
type AnalysisInvalidator interface {
	Invalidate(ctx context.Context, feedbackID uint)
}

// CompletionService exposes the respondent side of a feedback.
type CompletionService interface {
	AccessInformation(ctx context.Context, scope Scope) (dto.AccessInformationResponse, error)
	View(ctx context.Context, scope Scope, moduleViewed bool) error
	Items(ctx context.Context, scope Scope) ([]dto.ItemResponse, error)
	CurrentTmp(ctx context.Context, scope Scope) (dto.CompletedTmpResponse, error)
	Launch(ctx context.Context, scope Scope) (dto.LaunchResponse, error)
	PageItems(ctx context.Context, scope Scope, page int) (dto.PageItemsResponse, error)
	ProcessPage(ctx context.Context, scope Scope, req dto.ProcessPageRequest) (dto.ProcessPageResponse, error)
	UnfinishedResponses(ctx context.Context, scope Scope) ([]dto.ValueResponse, error)
	FinishedResponses(ctx context.Context, scope Scope) ([]dto.ValueResponse, error)
	LastCompleted(ctx context.Context, scope Scope) (dto.CompletedResponse, error)
}

// ErrNotStarted indicates the caller has no response in progress.
var ErrNotStarted = errors.New("feedback not started")

// ErrNotCompleted indicates the caller has not submitted a response yet.
var ErrNotCompleted = errors.New("feedback not completed yet")

type completionService struct {
	stores    Stores
	settings  Settings
	validator *validator.Validate
	events    EventRecorder
	notifier  SubmissionNotifier
	analysis  AnalysisInvalidator
	files     *attachmentLoader
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewCompletionService builds the completion service. notifier and analysis may be nil.
func NewCompletionService(stores Stores, settings Settings, validate *validator.Validate, events EventRecorder, notifier SubmissionNotifier, analysis AnalysisInvalidator, logger zerolog.Logger) CompletionService {
	return &completionService{
		stores:    stores,
		settings:  settings.withDefaults(),
		validator: validate,
		events:    eventsOrNop(events),
		notifier:  notifier,
		analysis:  analysis,
		files:     &attachmentLoader{files: stores.Files},
		logger:    logger.With().Str("component", "completion_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-feedback-api/internal/service/completion"),
		now:       time.Now,
	}
}

// open loads the feedback and rejects site feedbacks not offered in the requested course.
func (s *completionService) open(ctx context.Context, scope Scope) (*completion, error) {
	structure, err := loadStructure(ctx, s.stores, s.settings, scope)
	if err != nil {
		return nil, err
	}
	mapped, err := structure.CheckCourseIsMapped(ctx)
	if err != nil {
		return nil, err
	}
	if !mapped {
		return nil, ErrCourseNotMapped
	}
	return newCompletion(structure, s.now), nil
}

// guard checks the caller may answer the feedback now.
func (s *completionService) guard(ctx context.Context, c *completion, checkSubmit bool) error {
	canComplete, err := c.CanComplete(ctx)
	if err != nil {
		return err
	}
	if !canComplete {
		return ErrPermissionDenied
	}
	if !c.feedback.IsOpenAt(s.now()) {
		return ErrFeedbackNotOpen
	}
	empty, err := c.IsEmpty(ctx)
	if err != nil {
		return err
	}
	if empty {
		return ErrFeedbackEmpty
	}
	if !checkSubmit {
		return nil
	}
	canSubmit, err := c.CanSubmit(ctx)
	if err != nil {
		return err
	}
	if !canSubmit {
		return ErrAlreadySubmitted
	}
	return nil
}

func (s *completionService) AccessInformation(ctx context.Context, scope Scope) (dto.AccessInformationResponse, error) {
	c, err := s.open(ctx, scope)
	if err != nil {
		return dto.AccessInformationResponse{}, err
	}

	canViewAnalysis, err := c.CanViewAnalysis(ctx)
	if err != nil {
		return dto.AccessInformationResponse{}, err
	}
	canComplete, err := c.CanComplete(ctx)
	if err != nil {
		return dto.AccessInformationResponse{}, err
	}
	canSubmit, err := c.CanSubmit(ctx)
	if err != nil {
		return dto.AccessInformationResponse{}, err
	}
	empty, err := c.IsEmpty(ctx)
	if err != nil {
		return dto.AccessInformationResponse{}, err
	}
	submitted, err := c.IsAlreadySubmitted(ctx, c.IsSiteFeedback())
	if err != nil {
		return dto.AccessInformationResponse{}, err
	}

	facilitator := scope.Actor.IsFacilitator()
	return dto.AccessInformationResponse{
		CanViewAnalysis:      canViewAnalysis,
		CanComplete:          canComplete,
		CanSubmit:            canSubmit,
		CanDeleteSubmissions: facilitator,
		CanViewReports:       facilitator,
		CanEditItems:         facilitator,
		IsEmpty:              empty,
		IsOpen:               c.feedback.IsOpenAt(s.now()),
		IsAlreadySubmitted:   submitted,
		IsAnonymous:          c.IsAnonymous(),
	}, nil
}

func (s *completionService) View(ctx context.Context, scope Scope, moduleViewed bool) error {
	c, err := s.open(ctx, scope)
	if err != nil {
		return err
	}
	if moduleViewed && !c.feedback.IsOpenAt(s.now()) {
		return ErrFeedbackNotOpen
	}
	s.events.Record(ctx, FeedbackEvent{
		Name:       models.EventFeedbackViewed,
		FeedbackID: c.feedback.ID,
		CourseID:   c.ResponseCourseID(),
		UserID:     scope.Actor.UserID,
		Anonymous:  c.IsAnonymous(),
		Metadata:   map[string]interface{}{"module_viewed": moduleViewed},
	})
	return nil
}

func (s *completionService) Items(ctx context.Context, scope Scope) ([]dto.ItemResponse, error) {
	c, err := s.open(ctx, scope)
	if err != nil {
		return nil, err
	}
	list, err := c.Items(ctx, false)
	if err != nil {
		return nil, err
	}
	return s.files.withFiles(ctx, dto.NewItemResponseSlice(list))
}

func (s *completionService) CurrentTmp(ctx context.Context, scope Scope) (dto.CompletedTmpResponse, error) {
	c, err := s.open(ctx, scope)
	if err != nil {
		return dto.CompletedTmpResponse{}, err
	}
	tmp, err := c.CurrentTmp(ctx)
	if err != nil {
		return dto.CompletedTmpResponse{}, err
	}
	if tmp == nil {
		return dto.CompletedTmpResponse{}, ErrNotStarted
	}
	return dto.NewCompletedTmpResponse(*tmp), nil
}

func (s *completionService) Launch(ctx context.Context, scope Scope) (dto.LaunchResponse, error) {
	c, err := s.open(ctx, scope)
	if err != nil {
		return dto.LaunchResponse{}, err
	}
	if err := s.guard(ctx, c, true); err != nil {
		return dto.LaunchResponse{}, err
	}
	page, err := c.ResumePage(ctx)
	if err != nil {
		return dto.LaunchResponse{}, err
	}
	if page == nil {
		return dto.LaunchResponse{GoPage: -1}, nil
	}
	return dto.LaunchResponse{GoPage: *page}, nil
}

func (s *completionService) PageItems(ctx context.Context, scope Scope, page int) (dto.PageItemsResponse, error) {
	c, err := s.open(ctx, scope)
	if err != nil {
		return dto.PageItemsResponse{}, err
	}
	if !scope.Actor.IsFacilitator() {
		canComplete, err := c.CanComplete(ctx)
		if err != nil {
			return dto.PageItemsResponse{}, err
		}
		if !canComplete {
			return dto.PageItemsResponse{}, ErrPermissionDenied
		}
	}

	pages, err := c.Pages(ctx, true)
	if err != nil {
		return dto.PageItemsResponse{}, err
	}
	if page < 0 || page >= len(pages) {
		return dto.PageItemsResponse{}, ErrInvalidPage
	}
	previous, err := c.PreviousPage(ctx, page, false)
	if err != nil {
		return dto.PageItemsResponse{}, err
	}

	responses, err := s.files.withFiles(ctx, dto.NewItemResponseSlice(pages[page]))
	if err != nil {
		return dto.PageItemsResponse{}, err
	}
	return dto.PageItemsResponse{
		Items:       responses,
		HasPrevPage: page > 0 && previous != nil,
		HasNextPage: page < len(pages)-1,
	}, nil
}

func (s *completionService) ProcessPage(ctx context.Context, scope Scope, req dto.ProcessPageRequest) (dto.ProcessPageResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ProcessPageResponse{}, err
	}

	attrs := []attribute.KeyValue{
		attribute.Int64("feedback.id", int64(scope.FeedbackID)),
		attribute.Int("feedback.page", req.Page),
		attribute.Bool("feedback.go_previous", req.GoPrevious),
	}
	spanCtx, span := s.tracer.Start(ctx, "completion.process_page", trace.WithAttributes(attrs...))
	defer span.End()

	direction := "next"
	if req.GoPrevious {
		direction = "previous"
	}

	c, err := s.open(spanCtx, scope)
	if err != nil {
		span.RecordError(err)
		return dto.ProcessPageResponse{}, err
	}
	if err := s.guard(spanCtx, c, true); err != nil {
		observability.PagesProcessed().WithLabelValues(direction, "rejected").Inc()
		return dto.ProcessPageResponse{}, err
	}

	outcome, err := c.ProcessPage(spanCtx, req.Page, req.Responses, req.GoPrevious)
	if err != nil {
		var invalid ResponseErrors
		if errors.As(err, &invalid) {
			observability.PagesProcessed().WithLabelValues(direction, "invalid").Inc()
		} else {
			span.RecordError(err)
			observability.PagesProcessed().WithLabelValues(direction, "error").Inc()
		}
		return dto.ProcessPageResponse{}, err
	}

	if outcome.Completed == nil {
		observability.PagesProcessed().WithLabelValues(direction, "staged").Inc()
		return dto.ProcessPageResponse{JumpTo: outcome.JumpTo}, nil
	}

	observability.PagesProcessed().WithLabelValues(direction, "submitted").Inc()
	s.afterSubmit(spanCtx, c, *outcome.Completed)

	response := dto.ProcessPageResponse{Completed: true}
	if c.feedback.PageAfterSubmit != "" {
		response.CompletionPageContents = c.PageAfterSubmit()
	}
	if c.feedback.SiteAfterSubmit != "" {
		response.SiteAfterSubmit = c.feedback.SiteAfterSubmit
	}
	return response, nil
}

// afterSubmit runs the side effects of a stored response. Failures are logged only.
func (s *completionService) afterSubmit(ctx context.Context, c *completion, completed models.Completed) {
	anonymous := completed.AnonymousResponse == models.AnonymousYes
	observability.ResponsesSubmitted().WithLabelValues(strconv.FormatBool(anonymous)).Inc()

	if s.analysis != nil {
		s.analysis.Invalidate(ctx, c.feedback.ID)
	}

	s.events.Record(ctx, FeedbackEvent{
		Name:       models.EventResponseSubmitted,
		FeedbackID: c.feedback.ID,
		CourseID:   completed.CourseID,
		UserID:     completed.UserID,
		ObjectID:   completed.ID,
		Anonymous:  anonymous,
	})

	logEvent := s.logger.Info().Uint("feedback_id", c.feedback.ID).Uint("completed_id", completed.ID)
	if !anonymous {
		logEvent = logEvent.Uint("user_id", completed.UserID)
	}
	logEvent.Msg("response submitted")

	if !c.feedback.EmailNotification || s.notifier == nil {
		return
	}
	notice := SubmissionNotice{
		FeedbackID:  c.feedback.ID,
		CompletedID: completed.ID,
		CourseID:    completed.CourseID,
		Anonymous:   anonymous,
	}
	if !anonymous {
		notice.UserID = completed.UserID
	}
	if err := s.notifier.NotifySubmitted(ctx, notice); err != nil {
		s.logger.Warn().Err(err).Uint("feedback_id", c.feedback.ID).Msg("failed to enqueue submission notification")
	}
}

func (s *completionService) UnfinishedResponses(ctx context.Context, scope Scope) ([]dto.ValueResponse, error) {
	c, err := s.open(ctx, scope)
	if err != nil {
		return nil, err
	}
	values, err := c.UnfinishedResponses(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewStagedValueResponseSlice(values), nil
}

func (s *completionService) FinishedResponses(ctx context.Context, scope Scope) ([]dto.ValueResponse, error) {
	c, err := s.open(ctx, scope)
	if err != nil {
		return nil, err
	}
	values, err := c.FinishedResponses(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewValueResponseSlice(values), nil
}

func (s *completionService) LastCompleted(ctx context.Context, scope Scope) (dto.CompletedResponse, error) {
	c, err := s.open(ctx, scope)
	if err != nil {
		return dto.CompletedResponse{}, err
	}
	if c.IsAnonymous() {
		return dto.CompletedResponse{}, ErrAnonymousFeedback
	}
	last, err := c.LastCompleted(ctx)
	if err != nil {
		return dto.CompletedResponse{}, err
	}
	if last == nil {
		return dto.CompletedResponse{}, ErrNotCompleted
	}
	return dto.NewCompletedResponse(*last), nil
}

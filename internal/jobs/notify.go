package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-feedback-api/internal/models"
	"github.com/noah-isme/gema-feedback-api/internal/observability"
	"github.com/noah-isme/gema-feedback-api/internal/repository"
	"github.com/noah-isme/gema-feedback-api/internal/service"
)

var submissionMail = template.Must(template.New("submission").Parse(`<p>Hello {{.Recipient}},</p>
{{if .Anonymous}}<p>An anonymous response was submitted to <strong>{{.Feedback}}</strong>.</p>
{{else}}<p>{{.Respondent}} has completed <strong>{{.Feedback}}</strong>.</p>
{{end}}<p><a href="{{.Link}}">View the responses</a></p>`))

type submissionMailData struct {
	Recipient  string
	Respondent string
	Feedback   string
	Anonymous  bool
	Link       string
}

// NotificationHandler mails the facilitators of a course about a new response.
type NotificationHandler struct {
	feedbacks repository.FeedbackRepository
	courses   repository.CourseRepository
	sender    MailSender
	baseURL   string
	logger    zerolog.Logger
}

// NewNotificationHandler builds the submission notification handler.
func NewNotificationHandler(feedbacks repository.FeedbackRepository, courses repository.CourseRepository, sender MailSender, baseURL string, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		feedbacks: feedbacks,
		courses:   courses,
		sender:    sender,
		baseURL:   baseURL,
		logger:    logger.With().Str("component", "notification_handler").Logger(),
	}
}

// ProcessTask implements asynq.Handler.
func (h *NotificationHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	status := "sent"
	defer func() {
		observability.JobsProcessed().WithLabelValues(task.Type(), status).Inc()
	}()

	var notice service.SubmissionNotice
	if err := json.Unmarshal(task.Payload(), &notice); err != nil {
		status = "invalid"
		return fmt.Errorf("decode submission notice: %v: %w", err, asynq.SkipRetry)
	}

	feedback, err := h.feedbacks.GetByID(ctx, notice.FeedbackID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			status = "skipped"
			h.logger.Warn().Uint("feedback_id", notice.FeedbackID).Msg("feedback removed before notification")
			return nil
		}
		status = "error"
		return err
	}

	facilitators, _, err := h.courses.ListEnrolments(ctx, repository.EnrolmentFilter{
		CourseID: notice.CourseID,
		Roles:    []string{models.RoleTeacher, models.RoleAdmin},
		Sort:     "lastname",
	})
	if err != nil {
		status = "error"
		return err
	}

	data := submissionMailData{
		Feedback:  feedback.Name,
		Anonymous: notice.Anonymous,
		Link:      fmt.Sprintf("%s/feedbacks/%d/responses", h.baseURL, feedback.ID),
	}
	if !notice.Anonymous {
		data.Link = fmt.Sprintf("%s/feedbacks/%d/responses/%d", h.baseURL, feedback.ID, notice.CompletedID)
		if user, err := h.courses.GetUser(ctx, notice.UserID); err == nil {
			data.Respondent = user.FullName()
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			status = "error"
			return err
		}
		if data.Respondent == "" {
			data.Respondent = "A user"
		}
	}

	subject := fmt.Sprintf("New response: %s", feedback.Name)
	sent := 0
	var failed error
	for _, enrolment := range facilitators {
		if enrolment.User.Email == "" {
			continue
		}
		data.Recipient = enrolment.User.FullName()
		var body bytes.Buffer
		if err := submissionMail.Execute(&body, data); err != nil {
			status = "error"
			return err
		}
		if err := h.sender.Send(enrolment.User.Email, subject, body.String()); err != nil {
			h.logger.Warn().Err(err).Uint("user_id", enrolment.UserID).Msg("failed to send submission mail")
			failed = err
			continue
		}
		sent++
	}

	if failed != nil && sent == 0 {
		status = "error"
		return failed
	}
	if sent == 0 {
		status = "skipped"
	}
	h.logger.Info().Uint("feedback_id", feedback.ID).Int("recipients", sent).Msg("submission notification delivered")
	return nil
}

// Register wires every task handler into the mux.
func Register(mux *asynq.ServeMux, notifications *NotificationHandler) {
	mux.Handle(TypeSubmissionNotification, notifications)
}

package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-feedback-api/internal/models"
	"github.com/noah-isme/gema-feedback-api/internal/repository"
)

// FeedbackEvent describes something that happened to a feedback.
type FeedbackEvent struct {
	Name       string
	FeedbackID uint
	CourseID   uint
	UserID     uint
	ObjectID   uint
	Anonymous  bool
	Metadata   map[string]interface{}
}

// EventRecorder stores and broadcasts feedback events. Recording never fails
// the calling use case.
type EventRecorder interface {
	Record(ctx context.Context, event FeedbackEvent)
}

// SubmissionNotice is handed to the notifier once a response is stored.
type SubmissionNotice struct {
	FeedbackID  uint `json:"feedback_id"`
	CompletedID uint `json:"completed_id"`
	CourseID    uint `json:"course_id"`
	UserID      uint `json:"user_id"`
	Anonymous   bool `json:"anonymous"`
}

// SubmissionNotifier schedules the mail sent to facilitators after a submission.
type SubmissionNotifier interface {
	NotifySubmitted(ctx context.Context, notice SubmissionNotice) error
}

type eventRecorder struct {
	repo        repository.EventLogRepository
	nats        *nats.Conn
	subjectBase string
	logger      zerolog.Logger
	now         func() time.Time
}

type brokerEvent struct {
	Event      string                 `json:"event"`
	FeedbackID uint                   `json:"feedback_id"`
	CourseID   uint                   `json:"course_id"`
	UserID     uint                   `json:"user_id,omitempty"`
	ObjectID   uint                   `json:"object_id,omitempty"`
	Anonymous  bool                   `json:"anonymous"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// NewEventRecorder persists events to the audit log and publishes them on
// "<subjectBase>.<event>" when a NATS connection is available.
func NewEventRecorder(repo repository.EventLogRepository, natsConn *nats.Conn, subjectBase string, logger zerolog.Logger) EventRecorder {
	base := strings.Trim(strings.TrimSpace(subjectBase), ".")
	if base == "" {
		base = "feedback"
	}
	return &eventRecorder{
		repo:        repo,
		nats:        natsConn,
		subjectBase: base,
		logger:      logger.With().Str("component", "event_recorder").Logger(),
		now:         time.Now,
	}
}

// EventSubject maps an event name to its broker subject below base.
func EventSubject(base, event string) string {
	return base + "." + strings.ReplaceAll(event, "_", ".")
}

func (r *eventRecorder) Record(ctx context.Context, event FeedbackEvent) {
	occurred := r.now()

	if r.repo != nil {
		entry := models.EventLog{
			FeedbackID: event.FeedbackID,
			UserID:     event.UserID,
			CourseID:   event.CourseID,
			Event:      event.Name,
			Anonymous:  event.Anonymous,
			Metadata:   datatypes.JSONMap(event.Metadata),
			CreatedAt:  occurred,
		}
		if event.Anonymous {
			entry.UserID = 0
		}
		if event.ObjectID > 0 {
			objectID := event.ObjectID
			entry.ObjectID = &objectID
		}
		if err := r.repo.Create(ctx, &entry); err != nil {
			r.logger.Warn().Err(err).Str("event", event.Name).Uint("feedback_id", event.FeedbackID).Msg("failed to store event log")
		}
	}

	if r.nats == nil {
		return
	}
	message := brokerEvent{
		Event:      event.Name,
		FeedbackID: event.FeedbackID,
		CourseID:   event.CourseID,
		ObjectID:   event.ObjectID,
		Anonymous:  event.Anonymous,
		Metadata:   event.Metadata,
		OccurredAt: occurred,
	}
	if !event.Anonymous {
		message.UserID = event.UserID
	}
	payload, err := json.Marshal(message)
	if err != nil {
		r.logger.Warn().Err(err).Str("event", event.Name).Msg("failed to encode event")
		return
	}
	if err := r.nats.Publish(EventSubject(r.subjectBase, event.Name), payload); err != nil {
		r.logger.Warn().Err(err).Str("event", event.Name).Msg("failed to publish event to broker")
	}
}

type nopEventRecorder struct{}

func (nopEventRecorder) Record(context.Context, FeedbackEvent) {}

func eventsOrNop(recorder EventRecorder) EventRecorder {
	if recorder == nil {
		return nopEventRecorder{}
	}
	return recorder
}

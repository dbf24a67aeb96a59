// Package jobs runs the background work scheduled by the API through asynq.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-feedback-api/internal/service"
)

// Task types handled by the worker.
const (
	TypeSubmissionNotification = "feedback:submission:notify"
)

// QueueNotifications is the queue mail tasks are placed on.
const QueueNotifications = "notifications"

// NewSubmissionNotificationTask wraps a submission notice into a task.
func NewSubmissionNotificationTask(notice service.SubmissionNotice) (*asynq.Task, error) {
	payload, err := json.Marshal(notice)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSubmissionNotification, payload), nil
}

// Enqueuer schedules submission notifications on the queue.
type Enqueuer struct {
	client *asynq.Client
	logger zerolog.Logger
}

// NewEnqueuer builds the queue backed notifier.
func NewEnqueuer(client *asynq.Client, logger zerolog.Logger) *Enqueuer {
	return &Enqueuer{
		client: client,
		logger: logger.With().Str("component", "job_enqueuer").Logger(),
	}
}

// NotifySubmitted implements service.SubmissionNotifier.
func (e *Enqueuer) NotifySubmitted(ctx context.Context, notice service.SubmissionNotice) error {
	task, err := NewSubmissionNotificationTask(notice)
	if err != nil {
		return err
	}
	info, err := e.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(3),
		asynq.Timeout(time.Minute),
		asynq.TaskID(fmt.Sprintf("submission-%d", notice.CompletedID)),
	)
	if err != nil {
		return fmt.Errorf("enqueue submission notification: %w", err)
	}
	e.logger.Debug().Str("task_id", info.ID).Uint("feedback_id", notice.FeedbackID).Msg("submission notification enqueued")
	return nil
}

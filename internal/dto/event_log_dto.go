package dto

import (
	"time"

	"github.com/noah-isme/gema-feedback-api/internal/models"
)

// EventLogQuery filters the audit trail of a feedback.
type EventLogQuery struct {
	Event    string `query:"event" validate:"omitempty,max=64"`
	Page     int    `query:"page" validate:"min=0"`
	PageSize int    `query:"page_size" validate:"min=0,max=100"`
}

// EventLogEntry is one audit record.
type EventLogEntry struct {
	ID        uint                   `json:"id"`
	Event     string                 `json:"event"`
	UserID    uint                   `json:"user_id,omitempty"`
	CourseID  uint                   `json:"course_id"`
	ObjectID  *uint                  `json:"object_id"`
	Metadata  map[string]interface{} `json:"metadata"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewEventLogEntry converts a model into a DTO. Anonymous events never expose the user.
func NewEventLogEntry(model models.EventLog) EventLogEntry {
	entry := EventLogEntry{
		ID:        model.ID,
		Event:     model.Event,
		CourseID:  model.CourseID,
		ObjectID:  model.ObjectID,
		Metadata:  map[string]interface{}(model.Metadata),
		CreatedAt: model.CreatedAt,
	}
	if !model.Anonymous {
		entry.UserID = model.UserID
	}
	return entry
}

// EventLogListResponse is one page of audit records.
type EventLogListResponse struct {
	Items      []EventLogEntry `json:"items"`
	Pagination PaginationMeta  `json:"pagination"`
}

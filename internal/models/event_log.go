package models

import (
	"time"

	"gorm.io/datatypes"
)

// Event names recorded in EventLog and published to the broker.
const (
	EventFeedbackViewed    = "feedback_viewed"
	EventResponseSubmitted = "response_submitted"
	EventResponseDeleted   = "response_deleted"
	EventItemCreated       = "item_created"
	EventItemUpdated       = "item_updated"
	EventItemDeleted       = "item_deleted"
	EventTemplateApplied   = "template_applied"
	EventItemsImported     = "items_imported"
	EventFeedbackUpdated   = "feedback_updated"
)

// EventLog captures auditable events of a feedback.
type EventLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	FeedbackID uint              `gorm:"not null;index" json:"feedback_id"`
	UserID     uint              `gorm:"not null;default:0" json:"user_id"`
	CourseID   uint              `gorm:"not null;default:0" json:"course_id"`
	Event      string            `gorm:"size:64;not null" json:"event"`
	ObjectID   *uint             `json:"object_id"`
	Anonymous  bool              `gorm:"not null;default:false" json:"anonymous"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}

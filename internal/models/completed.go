package models

import "time"

// Completed is a submitted response set.
type Completed struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	FeedbackID        uint      `gorm:"not null;index" json:"feedback_id"`
	UserID            uint      `gorm:"not null;default:0;index" json:"user_id"`
	CourseID          uint      `gorm:"not null;default:0" json:"course_id"`
	RandomResponse    int       `gorm:"not null;default:0" json:"random_response"`
	AnonymousResponse int       `gorm:"not null;default:2" json:"anonymous_response"`
	Mark              float64   `gorm:"not null;default:0" json:"mark"`
	TimeModified      time.Time `json:"time_modified"`
	Values            []Value   `gorm:"foreignKey:CompletedID" json:"values,omitempty"`
}

// CompletedTmp is an in-progress response set. Guests are keyed by GuestID.
type CompletedTmp struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	FeedbackID        uint       `gorm:"not null;index" json:"feedback_id"`
	UserID            uint       `gorm:"not null;default:0;index" json:"user_id"`
	GuestID           string     `gorm:"size:64;index" json:"guest_id,omitempty"`
	CourseID          uint       `gorm:"not null;default:0" json:"course_id"`
	RandomResponse    int        `gorm:"not null;default:0" json:"random_response"`
	AnonymousResponse int        `gorm:"not null;default:2" json:"anonymous_response"`
	TimeModified      time.Time  `json:"time_modified"`
	Values            []ValueTmp `gorm:"foreignKey:CompletedID" json:"values,omitempty"`
}

// Value is a stored answer of a Completed.
type Value struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	CompletedID  uint   `gorm:"not null;index" json:"completed_id"`
	ItemID       uint   `gorm:"not null;index" json:"item_id"`
	CourseID     uint   `gorm:"not null;default:0" json:"course_id"`
	Value        string `gorm:"type:text" json:"value"`
	TmpCompleted uint   `gorm:"not null;default:0" json:"tmp_completed"`
}

// ValueTmp is a staged answer of a CompletedTmp. One row per item.
type ValueTmp struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	CompletedID  uint   `gorm:"not null;uniqueIndex:idx_valuetmp_completed_item" json:"completed_id"`
	ItemID       uint   `gorm:"not null;uniqueIndex:idx_valuetmp_completed_item" json:"item_id"`
	CourseID     uint   `gorm:"not null;default:0" json:"course_id"`
	Value        string `gorm:"type:text" json:"value"`
	TmpCompleted uint   `gorm:"not null;default:0" json:"tmp_completed"`
}

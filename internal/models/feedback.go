package models

import "time"

// Anonymity settings stored on Feedback.Anonymous and Completed.AnonymousResponse.
const (
	AnonymousYes = 1
	AnonymousNo  = 2
)

// Feedback is a survey activity placed in a course.
type Feedback struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	CourseID          uint       `gorm:"not null;index" json:"course_id"`
	Name              string     `gorm:"size:255;not null" json:"name"`
	Intro             string     `gorm:"type:text" json:"intro"`
	Anonymous         int        `gorm:"not null;default:2" json:"anonymous"`
	MultipleSubmit    bool       `gorm:"not null;default:false" json:"multiple_submit"`
	AutoNumbering     bool       `gorm:"not null;default:false" json:"autonumbering"`
	EmailNotification bool       `gorm:"not null;default:false" json:"email_notification"`
	PublishStats      bool       `gorm:"not null;default:false" json:"publish_stats"`
	PageAfterSubmit   string     `gorm:"type:text" json:"page_after_submit"`
	SiteAfterSubmit   string     `gorm:"size:512" json:"site_after_submit"`
	TimeOpen          *time.Time `json:"time_open"`
	TimeClose         *time.Time `json:"time_close"`
	CompletionSubmit  bool       `gorm:"not null;default:false" json:"completion_submit"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// IsAnonymous reports whether responses are stored without identity.
func (f Feedback) IsAnonymous() bool {
	return f.Anonymous == AnonymousYes
}

// IsOpenAt reports whether the reference time falls inside the open window.
// Unset bounds are treated as unbounded.
func (f Feedback) IsOpenAt(reference time.Time) bool {
	if f.TimeOpen != nil && f.TimeOpen.After(reference) {
		return false
	}
	if f.TimeClose != nil && f.TimeClose.Before(reference) {
		return false
	}
	return true
}

// SiteCourseMap restricts a site level feedback to a set of courses.
type SiteCourseMap struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	FeedbackID uint `gorm:"not null;uniqueIndex:idx_sitecourse_feedback_course" json:"feedback_id"`
	CourseID   uint `gorm:"not null;uniqueIndex:idx_sitecourse_feedback_course" json:"course_id"`
}

package service

import "github.com/noah-isme/gema-feedback-api/internal/models"

// Actor identifies the caller of a use case. Guests have no user id and
// are tracked by GuestID instead.
type Actor struct {
	UserID  uint
	Role    string
	GuestID string
}

// IsGuest reports whether the caller is not logged in.
func (a Actor) IsGuest() bool {
	return a.UserID == 0
}

// IsFacilitator reports whether the caller manages feedbacks.
func (a Actor) IsFacilitator() bool {
	return a.Role == models.RoleAdmin || a.Role == models.RoleTeacher
}

// Scope addresses a feedback as seen from a course. CourseID only matters
// for site feedbacks.
type Scope struct {
	FeedbackID uint
	CourseID   uint
	Actor      Actor
}

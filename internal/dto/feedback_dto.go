package dto

import (
	"time"

	"github.com/noah-isme/gema-feedback-api/internal/models"
)

// FeedbackCreateRequest describes the payload for creating a feedback activity.
type FeedbackCreateRequest struct {
	CourseID          uint       `json:"course_id" validate:"required"`
	Name              string     `json:"name" validate:"required,max=255"`
	Intro             string     `json:"intro"`
	Anonymous         int        `json:"anonymous" validate:"omitempty,oneof=1 2"`
	MultipleSubmit    bool       `json:"multiple_submit"`
	AutoNumbering     bool       `json:"autonumbering"`
	EmailNotification bool       `json:"email_notification"`
	PublishStats      bool       `json:"publish_stats"`
	PageAfterSubmit   string     `json:"page_after_submit"`
	SiteAfterSubmit   string     `json:"site_after_submit" validate:"omitempty,max=512,url"`
	TimeOpen          *time.Time `json:"time_open"`
	TimeClose         *time.Time `json:"time_close"`
	CompletionSubmit  bool       `json:"completion_submit"`
}

// FeedbackUpdateRequest describes a partial settings update.
type FeedbackUpdateRequest struct {
	Name              *string    `json:"name" validate:"omitempty,max=255"`
	Intro             *string    `json:"intro"`
	Anonymous         *int       `json:"anonymous" validate:"omitempty,oneof=1 2"`
	MultipleSubmit    *bool      `json:"multiple_submit"`
	AutoNumbering     *bool      `json:"autonumbering"`
	EmailNotification *bool      `json:"email_notification"`
	PublishStats      *bool      `json:"publish_stats"`
	PageAfterSubmit   *string    `json:"page_after_submit"`
	SiteAfterSubmit   *string    `json:"site_after_submit" validate:"omitempty,max=512"`
	TimeOpen          *time.Time `json:"time_open"`
	TimeClose         *time.Time `json:"time_close"`
	ClearTimeOpen     bool       `json:"clear_time_open"`
	ClearTimeClose    bool       `json:"clear_time_close"`
	CompletionSubmit  *bool      `json:"completion_submit"`
}

// FeedbackResponse is the serialized feedback activity.
type FeedbackResponse struct {
	ID                uint       `json:"id"`
	CourseID          uint       `json:"course_id"`
	Name              string     `json:"name"`
	Intro             string     `json:"intro"`
	Anonymous         int        `json:"anonymous"`
	MultipleSubmit    bool       `json:"multiple_submit"`
	AutoNumbering     bool       `json:"autonumbering"`
	EmailNotification bool       `json:"email_notification"`
	PublishStats      bool       `json:"publish_stats"`
	PageAfterSubmit   string     `json:"page_after_submit"`
	SiteAfterSubmit   string     `json:"site_after_submit"`
	TimeOpen          *time.Time `json:"time_open"`
	TimeClose         *time.Time `json:"time_close"`
	CompletionSubmit  bool       `json:"completion_submit"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewFeedbackResponse converts a model into a DTO.
func NewFeedbackResponse(model models.Feedback) FeedbackResponse {
	return FeedbackResponse{
		ID:                model.ID,
		CourseID:          model.CourseID,
		Name:              model.Name,
		Intro:             model.Intro,
		Anonymous:         model.Anonymous,
		MultipleSubmit:    model.MultipleSubmit,
		AutoNumbering:     model.AutoNumbering,
		EmailNotification: model.EmailNotification,
		PublishStats:      model.PublishStats,
		PageAfterSubmit:   model.PageAfterSubmit,
		SiteAfterSubmit:   model.SiteAfterSubmit,
		TimeOpen:          model.TimeOpen,
		TimeClose:         model.TimeClose,
		CompletionSubmit:  model.CompletionSubmit,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
}

// NewFeedbackResponseSlice converts a slice of models into DTOs.
func NewFeedbackResponseSlice(feedbacks []models.Feedback) []FeedbackResponse {
	responses := make([]FeedbackResponse, 0, len(feedbacks))
	for _, feedback := range feedbacks {
		responses = append(responses, NewFeedbackResponse(feedback))
	}
	return responses
}

// CourseMapRequest replaces the courses a site feedback is offered in.
type CourseMapRequest struct {
	CourseIDs []uint `json:"course_ids" validate:"dive,gt=0"`
}

// CourseResponse is a course summary.
type CourseResponse struct {
	ID        uint   `json:"id"`
	ShortName string `json:"shortname"`
	FullName  string `json:"fullname"`
}

// NewCourseResponseSlice converts course models into DTOs.
func NewCourseResponseSlice(courses []models.Course) []CourseResponse {
	responses := make([]CourseResponse, 0, len(courses))
	for _, course := range courses {
		responses = append(responses, CourseResponse{ID: course.ID, ShortName: course.ShortName, FullName: course.FullName})
	}
	return responses
}

package dto

import "github.com/noah-isme/gema-feedback-api/internal/models"

// TemplateCreateRequest saves the items of a feedback as a template.
type TemplateCreateRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	IsPublic bool   `json:"ispublic"`
}

// TemplateApplyRequest copies template items into a feedback.
type TemplateApplyRequest struct {
	TemplateID uint `json:"template_id" validate:"required"`
	DeleteOld  bool `json:"delete_old"`
}

// TemplateResponse is the serialized template.
type TemplateResponse struct {
	ID       uint   `json:"id"`
	CourseID uint   `json:"course_id"`
	Name     string `json:"name"`
	IsPublic bool   `json:"ispublic"`
}

// NewTemplateResponse converts a model into a DTO.
func NewTemplateResponse(model models.Template) TemplateResponse {
	return TemplateResponse{ID: model.ID, CourseID: model.CourseID, Name: model.Name, IsPublic: model.IsPublic}
}

// NewTemplateResponseSlice converts template models into DTOs.
func NewTemplateResponseSlice(templates []models.Template) []TemplateResponse {
	responses := make([]TemplateResponse, 0, len(templates))
	for _, template := range templates {
		responses = append(responses, NewTemplateResponse(template))
	}
	return responses
}

// ImportResponse reports the outcome of an XML import.
type ImportResponse struct {
	Imported int            `json:"imported"`
	Items    []ItemResponse `json:"items"`
}

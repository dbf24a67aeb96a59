package dto

import (
	"time"

	"github.com/noah-isme/gema-feedback-api/internal/models"
)

// AccessInformationResponse lists what the caller may do with a feedback.
type AccessInformationResponse struct {
	CanViewAnalysis      bool `json:"canviewanalysis"`
	CanComplete          bool `json:"cancomplete"`
	CanSubmit            bool `json:"cansubmit"`
	CanDeleteSubmissions bool `json:"candeletesubmissions"`
	CanViewReports       bool `json:"canviewreports"`
	CanEditItems         bool `json:"canedititems"`
	IsEmpty              bool `json:"isempty"`
	IsOpen               bool `json:"isopen"`
	IsAlreadySubmitted   bool `json:"isalreadysubmitted"`
	IsAnonymous          bool `json:"isanonymous"`
}

// LaunchResponse carries the page a respondent should continue on. -1 means
// every page already holds an answer.
type LaunchResponse struct {
	GoPage int `json:"gopage"`
}

// PageItemsResponse is one page of the questionnaire.
type PageItemsResponse struct {
	Items       []ItemResponse `json:"items"`
	HasPrevPage bool           `json:"hasprevpage"`
	HasNextPage bool           `json:"hasnextpage"`
}

// ResponseInput is one submitted form field. Name follows the
// "<typ>_<itemid>" convention with an optional "[n]" suffix for multiple
// values. ItemID takes precedence when set.
type ResponseInput struct {
	Name   string `json:"name" validate:"required_without=ItemID,max=128"`
	ItemID uint   `json:"item_id"`
	Value  string `json:"value"`
}

// ProcessPageRequest submits the answers of a page.
type ProcessPageRequest struct {
	Page       int             `json:"page" validate:"min=0"`
	Responses  []ResponseInput `json:"responses" validate:"dive"`
	GoPrevious bool            `json:"goprevious"`
}

// ProcessPageResponse tells the client where to go next.
type ProcessPageResponse struct {
	JumpTo                 int    `json:"jumpto"`
	Completed              bool   `json:"completed"`
	CompletionPageContents string `json:"completionpagecontents"`
	SiteAfterSubmit        string `json:"siteaftersubmit"`
}

// ValueResponse is a staged or submitted answer.
type ValueResponse struct {
	ID           uint   `json:"id"`
	CourseID     uint   `json:"course_id"`
	ItemID       uint   `json:"item"`
	CompletedID  uint   `json:"completed"`
	TmpCompleted uint   `json:"tmp_completed"`
	Value        string `json:"value"`
}

// NewValueResponseSlice converts submitted values into DTOs.
func NewValueResponseSlice(values []models.Value) []ValueResponse {
	responses := make([]ValueResponse, 0, len(values))
	for _, value := range values {
		responses = append(responses, ValueResponse{
			ID:           value.ID,
			CourseID:     value.CourseID,
			ItemID:       value.ItemID,
			CompletedID:  value.CompletedID,
			TmpCompleted: value.TmpCompleted,
			Value:        value.Value,
		})
	}
	return responses
}

// NewStagedValueResponseSlice converts staged values into DTOs.
func NewStagedValueResponseSlice(values []models.ValueTmp) []ValueResponse {
	responses := make([]ValueResponse, 0, len(values))
	for _, value := range values {
		responses = append(responses, ValueResponse{
			ID:           value.ID,
			CourseID:     value.CourseID,
			ItemID:       value.ItemID,
			CompletedID:  value.CompletedID,
			TmpCompleted: value.TmpCompleted,
			Value:        value.Value,
		})
	}
	return responses
}

// CompletedResponse is a submitted response set without its values.
type CompletedResponse struct {
	ID                uint      `json:"id"`
	FeedbackID        uint      `json:"feedback"`
	UserID            uint      `json:"userid"`
	CourseID          uint      `json:"courseid"`
	RandomResponse    int       `json:"random_response"`
	AnonymousResponse int       `json:"anonymous_response"`
	Mark              float64   `json:"mark"`
	TimeModified      time.Time `json:"timemodified"`
}

// NewCompletedResponse converts a model into a DTO.
func NewCompletedResponse(model models.Completed) CompletedResponse {
	return CompletedResponse{
		ID:                model.ID,
		FeedbackID:        model.FeedbackID,
		UserID:            model.UserID,
		CourseID:          model.CourseID,
		RandomResponse:    model.RandomResponse,
		AnonymousResponse: model.AnonymousResponse,
		Mark:              model.Mark,
		TimeModified:      model.TimeModified,
	}
}

// CompletedTmpResponse is an in-progress response set.
type CompletedTmpResponse struct {
	ID                uint      `json:"id"`
	FeedbackID        uint      `json:"feedback"`
	UserID            uint      `json:"userid"`
	CourseID          uint      `json:"courseid"`
	AnonymousResponse int       `json:"anonymous_response"`
	TimeModified      time.Time `json:"timemodified"`
}

// NewCompletedTmpResponse converts a model into a DTO.
func NewCompletedTmpResponse(model models.CompletedTmp) CompletedTmpResponse {
	return CompletedTmpResponse{
		ID:                model.ID,
		FeedbackID:        model.FeedbackID,
		UserID:            model.UserID,
		CourseID:          model.CourseID,
		AnonymousResponse: model.AnonymousResponse,
		TimeModified:      model.TimeModified,
	}
}

package dto

import "github.com/noah-isme/gema-feedback-api/internal/models"

// ItemFields holds the editable attributes of an item.
type ItemFields struct {
	Name         string `json:"name" validate:"max=65535"`
	Label        string `json:"label" validate:"max=255"`
	Presentation string `json:"presentation"`
	Required     bool   `json:"required"`
	DependItem   uint   `json:"dependitem"`
	DependValue  string `json:"dependvalue" validate:"max=255"`
	Options      string `json:"options" validate:"max=255"`
}

// ItemCreateRequest describes the payload for adding an item.
type ItemCreateRequest struct {
	Typ string `json:"typ" validate:"required,max=32"`
	ItemFields
	// Position inserts the item at a 1-based position. Zero appends.
	Position int `json:"position" validate:"min=0"`
}

// ItemUpdateRequest replaces the editable attributes of an item.
type ItemUpdateRequest struct {
	ItemFields
}

// ItemMoveRequest moves an item to a 1-based position.
type ItemMoveRequest struct {
	Position int `json:"position" validate:"required,min=1"`
}

// ItemOrderRequest sets the full item order.
type ItemOrderRequest struct {
	ItemIDs []uint `json:"item_ids" validate:"required,min=1,dive,gt=0"`
}

// GradedAnswerRequest sets the expected answer of a graded item.
type GradedAnswerRequest struct {
	Answer string  `json:"answer" validate:"required,max=255"`
	Grade  float64 `json:"grade" validate:"gte=0"`
}

// ItemFileResponse describes an attachment of an item.
type ItemFileResponse struct {
	ID        uint   `json:"id"`
	ItemID    uint   `json:"item_id"`
	URL       string `json:"url"`
	Filename  string `json:"filename"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// NewItemFileResponse converts a model into a DTO.
func NewItemFileResponse(model models.ItemFile) ItemFileResponse {
	return ItemFileResponse{
		ID:        model.ID,
		ItemID:    model.ItemID,
		URL:       model.URL,
		Filename:  model.Filename,
		MimeType:  model.MimeType,
		SizeBytes: model.SizeBytes,
	}
}

// GradedAnswerResponse is the expected answer of a graded item.
type GradedAnswerResponse struct {
	Answer string  `json:"answer"`
	Grade  float64 `json:"grade"`
}

// ItemResponse is the serialized item.
type ItemResponse struct {
	ID           uint                  `json:"id"`
	FeedbackID   uint                  `json:"feedback"`
	TemplateID   uint                  `json:"template"`
	Name         string                `json:"name"`
	Label        string                `json:"label"`
	Presentation string                `json:"presentation"`
	Typ          string                `json:"typ"`
	HasValue     bool                  `json:"hasvalue"`
	Position     int                   `json:"position"`
	Required     bool                  `json:"required"`
	DependItem   uint                  `json:"dependitem"`
	DependValue  string                `json:"dependvalue"`
	Options      string                `json:"options"`
	ItemNumber   *int                  `json:"itemnumber"`
	Graded       *GradedAnswerResponse `json:"graded,omitempty"`
	Files        []ItemFileResponse    `json:"itemfiles"`
}

// NewItemResponse converts a model into a DTO. Item numbers are only
// reported for numbered value items.
func NewItemResponse(model models.Item) ItemResponse {
	response := ItemResponse{
		ID:           model.ID,
		FeedbackID:   model.FeedbackID,
		TemplateID:   model.TemplateID,
		Name:         model.Name,
		Label:        model.Label,
		Presentation: model.Presentation,
		Typ:          model.Typ,
		HasValue:     model.HasValue,
		Position:     model.Position,
		Required:     model.Required,
		DependItem:   model.DependItem,
		DependValue:  model.DependValue,
		Options:      model.Options,
		Files:        []ItemFileResponse{},
	}
	if model.ItemNumber > 0 {
		number := model.ItemNumber
		response.ItemNumber = &number
	}
	return response
}

// NewItemResponseSlice converts item models into DTOs.
func NewItemResponseSlice(items []models.Item) []ItemResponse {
	responses := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewItemResponse(item))
	}
	return responses
}

// DependCandidateResponse is an item other items may depend on.
type DependCandidateResponse struct {
	ID    uint   `json:"id"`
	Label string `json:"label"`
}

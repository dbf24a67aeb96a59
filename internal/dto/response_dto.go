package dto

import "time"

// ResponsesQuery pages through the submitted responses.
type ResponsesQuery struct {
	GroupID uint   `query:"groupid"`
	Page    int    `query:"page" validate:"min=0"`
	PerPage int    `query:"perpage" validate:"min=0,max=500"`
	Sort    string `query:"sort"`
}

// AnsweredValue is one answer of a response, ready for display.
type AnsweredValue struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	PrintVal string `json:"printval"`
	RawVal   string `json:"rawval"`
}

// AttemptResponse is an identified response.
type AttemptResponse struct {
	ID           uint            `json:"id"`
	CourseID     uint            `json:"courseid"`
	UserID       uint            `json:"userid"`
	TimeModified time.Time       `json:"timemodified"`
	FullName     string          `json:"fullname"`
	Mark         float64         `json:"mark"`
	Responses    []AnsweredValue `json:"responses"`
}

// AnonAttemptResponse is an anonymous response identified by its number.
type AnonAttemptResponse struct {
	ID        uint            `json:"id"`
	CourseID  uint            `json:"courseid"`
	Number    int             `json:"number"`
	Mark      float64         `json:"mark"`
	Responses []AnsweredValue `json:"responses"`
}

// ResponsesAnalysisResponse lists identified and anonymous responses.
type ResponsesAnalysisResponse struct {
	Attempts          []AttemptResponse     `json:"attempts"`
	TotalAttempts     int64                 `json:"totalattempts"`
	AnonAttempts      []AnonAttemptResponse `json:"anonattempts"`
	TotalAnonAttempts int64                 `json:"totalanonattempts"`
	Warnings          []Warning             `json:"warnings"`
}

// CompletedDetailResponse is a single response with its answers.
type CompletedDetailResponse struct {
	Completed CompletedResponse `json:"completed"`
	FullName  string            `json:"fullname,omitempty"`
	Responses []AnsweredValue   `json:"responses"`
}

// NonRespondentsQuery pages through users who have not responded.
type NonRespondentsQuery struct {
	GroupID uint   `query:"groupid"`
	Sort    string `query:"sort" validate:"omitempty,oneof=firstname lastname lastaccess"`
	Page    int    `query:"page" validate:"min=0"`
	PerPage int    `query:"perpage" validate:"min=0,max=500"`
}

// NonRespondent is an enrolled user without a submitted response.
type NonRespondent struct {
	CourseID uint   `json:"courseid"`
	UserID   uint   `json:"userid"`
	FullName string `json:"fullname"`
	Started  bool   `json:"started"`
}

// NonRespondentsResponse is one page of non respondents.
type NonRespondentsResponse struct {
	Users    []NonRespondent `json:"users"`
	Total    int64           `json:"total"`
	Warnings []Warning       `json:"warnings"`
}

// DeleteAllResponse reports how many responses were removed.
type DeleteAllResponse struct {
	Deleted int64 `json:"deleted"`
}

package dto

import "github.com/noah-isme/gema-feedback-api/internal/items"

// ItemAnalysis is the aggregate of one value item.
type ItemAnalysis struct {
	Item ItemResponse   `json:"item"`
	Data items.Analysis `json:"data"`
}

// AnalysisResponse summarises all submitted responses of a feedback.
type AnalysisResponse struct {
	CompletedCount int64          `json:"completedcount"`
	ItemsCount     int            `json:"itemscount"`
	ItemsData      []ItemAnalysis `json:"itemsdata"`
	Warnings       []Warning      `json:"warnings"`
	CacheHit       bool           `json:"cache_hit"`
}

// CourseAverage is the mean answer of an item within one course.
type CourseAverage struct {
	CourseID  uint    `json:"courseid"`
	ShortName string  `json:"shortname"`
	Count     int     `json:"count"`
	Average   float64 `json:"average"`
}

// CourseAnalysisResponse compares an item across courses.
type CourseAnalysisResponse struct {
	Item    ItemResponse    `json:"item"`
	Courses []CourseAverage `json:"courses"`
}

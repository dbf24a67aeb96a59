package service

import (
	"context"
	"math"

	"github.com/noah-isme/gema-feedback-api/internal/models"
	"github.com/noah-isme/gema-feedback-api/internal/repository"
)

// markCalculator scores responses against the graded answers of a feedback.
type markCalculator struct {
	items      repository.ItemRepository
	completeds repository.CompletedRepository
}

func newMarkCalculator(stores Stores) *markCalculator {
	return &markCalculator{items: stores.Items, completeds: stores.Completeds}
}

// computeMark returns the share of earned grade in percent. A feedback without
// graded weight scores zero.
func computeMark(questions []models.GradedQuestion, values map[uint]string) float64 {
	var total, earned float64
	for _, question := range questions {
		total += question.Grade
		if answer, ok := values[question.ItemID]; ok && answer == question.Answer {
			earned += question.Grade
		}
	}
	mark := earned / total * 100
	if math.IsNaN(mark) || math.IsInf(mark, 0) {
		return 0
	}
	return mark
}

func (m *markCalculator) gradedQuestions(ctx context.Context, feedbackID uint) ([]models.GradedQuestion, error) {
	list, err := m.items.List(ctx, repository.ItemOwner{FeedbackID: feedbackID})
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0)
	for _, item := range list {
		if item.IsGraded {
			ids = append(ids, item.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return m.items.ListGradedQuestions(ctx, ids)
}

// Score updates the marks of the given responses.
func (m *markCalculator) Score(ctx context.Context, feedbackID uint, completedIDs []uint) error {
	if len(completedIDs) == 0 {
		return nil
	}
	questions, err := m.gradedQuestions(ctx, feedbackID)
	if err != nil {
		return err
	}

	values, err := m.completeds.ListValues(ctx, completedIDs)
	if err != nil {
		return err
	}
	answers := make(map[uint]map[uint]string, len(completedIDs))
	for _, id := range completedIDs {
		answers[id] = map[uint]string{}
	}
	for _, value := range values {
		if byItem, ok := answers[value.CompletedID]; ok {
			byItem[value.ItemID] = value.Value
		}
	}

	marks := make(map[uint]float64, len(completedIDs))
	for id, byItem := range answers {
		marks[id] = computeMark(questions, byItem)
	}
	return m.completeds.UpdateMarks(ctx, marks)
}

// Recalculate rescores every response of a feedback.
func (m *markCalculator) Recalculate(ctx context.Context, feedbackID uint) error {
	completeds, _, err := m.completeds.List(ctx, repository.CompletedFilter{FeedbackID: feedbackID})
	if err != nil {
		return err
	}
	ids := make([]uint, 0, len(completeds))
	for _, completed := range completeds {
		ids = append(ids, completed.ID)
	}
	return m.Score(ctx, feedbackID, ids)
}

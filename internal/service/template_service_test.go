package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-feedback-api/internal/dto"
	"github.com/noah-isme/gema-feedback-api/internal/models"
	"github.com/noah-isme/gema-feedback-api/internal/repository"
)

func TestTemplateServiceSavesAndAppliesItems(t *testing.T) {
	f := newFixture(t)
	events := &recordedEvents{}
	invalidator := &countingInvalidator{}
	svc := NewTemplateService(f.stores, f.validate, events, invalidator, testLogger())
	ctx := context.Background()

	empty := f.feedback(t, models.Feedback{CourseID: 2})
	_, err := svc.SaveAsTemplate(ctx, empty.ID, dto.TemplateCreateRequest{Name: "Empty"})
	require.ErrorIs(t, err, ErrFeedbackEmpty)

	source := f.feedback(t, models.Feedback{CourseID: 2})
	choice := radio("yes", "no")
	choice.IsGraded = true
	list := f.items(t, source.ID, choice, numericItem())
	dependent := list[1]
	dependent.DependItem = list[0].ID
	dependent.DependValue = "yes"
	require.NoError(t, f.db.Save(&dependent).Error)
	f.create(t, &models.GradedQuestion{ItemID: list[0].ID, Answer: "1", Grade: 4})

	_, err = svc.SaveAsTemplate(ctx, source.ID, dto.TemplateCreateRequest{})
	require.Error(t, err)

	template, err := svc.SaveAsTemplate(ctx, source.ID, dto.TemplateCreateRequest{Name: "  Weekly check  "})
	require.NoError(t, err)
	require.Equal(t, "Weekly check", template.Name)
	require.Equal(t, uint(2), template.CourseID)

	templateItems, err := svc.Items(ctx, template.ID)
	require.NoError(t, err)
	require.Len(t, templateItems, 2)
	require.NotEqual(t, list[0].ID, templateItems[0].ID)
	require.Equal(t, templateItems[0].ID, templateItems[1].DependItem)

	target := f.feedback(t, models.Feedback{CourseID: 3})
	f.items(t, target.ID, textfield())
	applied, err := svc.Apply(ctx, target.ID, dto.TemplateApplyRequest{TemplateID: template.ID}, teacher(1))
	require.NoError(t, err)
	require.Len(t, applied, 3)
	require.Equal(t, []int{1, 2, 3}, []int{applied[0].Position, applied[1].Position, applied[2].Position})
	require.Equal(t, applied[1].ID, applied[2].DependItem)

	questions, err := f.stores.Items.ListGradedQuestions(ctx, []uint{applied[1].ID})
	require.NoError(t, err)
	require.Len(t, questions, 1)
	require.Equal(t, "1", questions[0].Answer)

	f.respond(t, target.ID, 10, 3, map[uint]string{applied[1].ID: "1"})
	replaced, err := svc.Apply(ctx, target.ID, dto.TemplateApplyRequest{TemplateID: template.ID, DeleteOld: true}, teacher(1))
	require.NoError(t, err)
	require.Len(t, replaced, 2)
	var responses int64
	require.NoError(t, f.db.Model(&models.Completed{}).Where("feedback_id = ?", target.ID).Count(&responses).Error)
	require.Zero(t, responses)

	require.Equal(t, 2, invalidator.calls[target.ID])
	require.Equal(t, []string{models.EventTemplateApplied, models.EventTemplateApplied}, events.names())

	_, err = svc.Apply(ctx, target.ID, dto.TemplateApplyRequest{TemplateID: 999}, teacher(1))
	require.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestTemplateServiceListsByScope(t *testing.T) {
	f := newFixture(t)
	svc := NewTemplateService(f.stores, f.validate, nil, nil, testLogger())
	ctx := context.Background()

	f.create(t,
		&models.Template{CourseID: 2, Name: "Own"},
		&models.Template{CourseID: 5, Name: "Shared", IsPublic: true},
		&models.Template{CourseID: 5, Name: "Foreign"},
	)

	all, err := svc.List(ctx, 2, repository.TemplateScopeAll)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "Own", all[0].Name)

	own, err := svc.List(ctx, 2, repository.TemplateScopeOwn)
	require.NoError(t, err)
	require.Len(t, own, 1)

	public, err := svc.List(ctx, 2, repository.TemplateScopePublic)
	require.NoError(t, err)
	require.Len(t, public, 1)
	require.Equal(t, "Shared", public[0].Name)

	_, err = svc.List(ctx, 2, "everything")
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestTemplateServiceDeletesTemplates(t *testing.T) {
	f := newFixture(t)
	svc := NewTemplateService(f.stores, f.validate, nil, nil, testLogger())
	ctx := context.Background()

	template := models.Template{CourseID: 2, Name: "Old"}
	f.create(t, &template)
	f.create(t, &models.Item{TemplateID: template.ID, Typ: "textfield", Presentation: "30|255", HasValue: true, Position: 1})

	require.NoError(t, svc.Delete(ctx, template.ID))
	require.ErrorIs(t, svc.Delete(ctx, template.ID), ErrTemplateNotFound)

	_, err := svc.Items(ctx, template.ID)
	require.ErrorIs(t, err, ErrTemplateNotFound)

	var leftovers int64
	require.NoError(t, f.db.Model(&models.Item{}).Where("template_id = ?", template.ID).Count(&leftovers).Error)
	require.Zero(t, leftovers)
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-feedback-api/internal/dto"
	"github.com/noah-isme/gema-feedback-api/internal/models"
)

func newFeedbackFixture(t *testing.T) (*fixture, FeedbackService, *countingInvalidator) {
	t.Helper()
	f := newFixture(t)
	invalidator := &countingInvalidator{}
	events := NewEventRecorder(f.stores.Events, nil, "", testLogger())
	f.create(t,
		&models.Course{ID: 1, ShortName: "SITE"},
		&models.Course{ID: 2, ShortName: "BIO", SortOrder: 2},
		&models.Course{ID: 3, ShortName: "CHEM", SortOrder: 3},
	)
	return f, NewFeedbackService(f.stores, f.settings, f.validate, events, invalidator, testLogger()), invalidator
}

func TestFeedbackServiceCreatesAndUpdates(t *testing.T) {
	_, svc, invalidator := newFeedbackFixture(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, dto.FeedbackCreateRequest{
		CourseID:        2,
		Name:            "  Lab evaluation ",
		Intro:           `<b>Hello</b><script>alert(1)</script>`,
		PageAfterSubmit: "<p>Thanks</p>",
	}, teacher(1))
	require.NoError(t, err)
	require.Equal(t, "Lab evaluation", created.Name)
	require.Equal(t, "<b>Hello</b>", created.Intro)
	require.Equal(t, models.AnonymousNo, created.Anonymous)

	_, err = svc.Create(ctx, dto.FeedbackCreateRequest{CourseID: 42, Name: "Missing course"}, teacher(1))
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Create(ctx, dto.FeedbackCreateRequest{CourseID: 2}, teacher(1))
	require.Error(t, err)

	opens := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	closes := opens.Add(-time.Hour)
	_, err = svc.Create(ctx, dto.FeedbackCreateRequest{CourseID: 2, Name: "Backwards", TimeOpen: &opens, TimeClose: &closes}, teacher(1))
	require.ErrorIs(t, err, ErrInvalidSchedule)

	name := "Renamed"
	anonymous := models.AnonymousYes
	publish := true
	updated, err := svc.Update(ctx, created.ID, dto.FeedbackUpdateRequest{
		Name:         &name,
		Anonymous:    &anonymous,
		PublishStats: &publish,
		TimeOpen:     &opens,
	}, teacher(1))
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Name)
	require.Equal(t, models.AnonymousYes, updated.Anonymous)
	require.True(t, updated.PublishStats)
	require.NotNil(t, updated.TimeOpen)
	require.Equal(t, "<p>Thanks</p>", updated.PageAfterSubmit)
	require.Equal(t, 1, invalidator.calls[created.ID])

	cleared, err := svc.Update(ctx, created.ID, dto.FeedbackUpdateRequest{ClearTimeOpen: true}, teacher(1))
	require.NoError(t, err)
	require.Nil(t, cleared.TimeOpen)

	blank := "  "
	_, err = svc.Update(ctx, created.ID, dto.FeedbackUpdateRequest{Name: &blank}, teacher(1))
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Update(ctx, 999, dto.FeedbackUpdateRequest{Name: &name}, teacher(1))
	require.ErrorIs(t, err, ErrFeedbackNotFound)

	log, err := svc.Events(ctx, created.ID, dto.EventLogQuery{Event: models.EventFeedbackUpdated})
	require.NoError(t, err)
	require.EqualValues(t, 2, log.Pagination.TotalItems)
	require.Equal(t, uint(1), log.Items[0].UserID)
	require.Equal(t, 20, log.Pagination.PageSize)
}

func TestFeedbackServiceDeletesEverything(t *testing.T) {
	f, svc, invalidator := newFeedbackFixture(t)
	ctx := context.Background()

	feedback := f.feedback(t, models.Feedback{CourseID: 2})
	list := f.items(t, feedback.ID, textfield())
	f.respond(t, feedback.ID, 10, 2, map[uint]string{list[0].ID: "gone"})

	require.NoError(t, svc.Delete(ctx, feedback.ID))
	require.ErrorIs(t, svc.Delete(ctx, feedback.ID), ErrFeedbackNotFound)
	require.Equal(t, 1, invalidator.calls[feedback.ID])

	for _, model := range []interface{}{&models.Item{}, &models.Completed{}} {
		var count int64
		require.NoError(t, f.db.Model(model).Where("feedback_id = ?", feedback.ID).Count(&count).Error)
		require.Zero(t, count)
	}

	_, err := svc.Get(ctx, feedback.ID)
	require.ErrorIs(t, err, ErrFeedbackNotFound)
}

func TestFeedbackServiceMapsSiteFeedbacksToCourses(t *testing.T) {
	f, svc, _ := newFeedbackFixture(t)
	ctx := context.Background()

	own := f.feedback(t, models.Feedback{CourseID: 2, Name: "Biology"})
	site := f.feedback(t, models.Feedback{CourseID: 1, Name: "Site wide"})
	restricted := f.feedback(t, models.Feedback{CourseID: 1, Name: "Chemistry only"})

	_, err := svc.ReplaceCourseMap(ctx, own.ID, dto.CourseMapRequest{CourseIDs: []uint{3}})
	require.ErrorIs(t, err, ErrNotSiteFeedback)

	mapped, err := svc.ReplaceCourseMap(ctx, restricted.ID, dto.CourseMapRequest{CourseIDs: []uint{3, 1, 3}})
	require.NoError(t, err)
	require.Len(t, mapped, 1)
	require.Equal(t, "CHEM", mapped[0].ShortName)

	current, err := svc.CourseMap(ctx, restricted.ID)
	require.NoError(t, err)
	require.Equal(t, mapped, current)

	inBiology, err := svc.ListForCourse(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, []uint{own.ID, site.ID}, feedbackIDs(inBiology))

	inChemistry, err := svc.ListForCourse(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, []uint{site.ID, restricted.ID}, feedbackIDs(inChemistry))

	onSite, err := svc.ListForCourse(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []uint{site.ID, restricted.ID}, feedbackIDs(onSite))

	byCourse, err := svc.ListByCourse(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, []uint{own.ID}, feedbackIDs(byCourse))

	cleared, err := svc.ReplaceCourseMap(ctx, restricted.ID, dto.CourseMapRequest{})
	require.NoError(t, err)
	require.Empty(t, cleared)
	inBiology, err = svc.ListForCourse(ctx, 2)
	require.NoError(t, err)
	require.Len(t, inBiology, 3)
}

func feedbackIDs(list []dto.FeedbackResponse) []uint {
	ids := make([]uint, 0, len(list))
	for _, feedback := range list {
		ids = append(ids, feedback.ID)
	}
	return ids
}

func TestEventRecorderHidesAnonymousUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	recorder := NewEventRecorder(f.stores.Events, nil, "lms.", testLogger())

	recorder.Record(ctx, FeedbackEvent{Name: models.EventResponseSubmitted, FeedbackID: 5, UserID: 9, ObjectID: 3, Anonymous: true})
	recorder.Record(ctx, FeedbackEvent{Name: models.EventResponseSubmitted, FeedbackID: 5, UserID: 8, Metadata: map[string]interface{}{"course": 2}})

	var stored []models.EventLog
	require.NoError(t, f.db.Order("id ASC").Find(&stored).Error)
	require.Len(t, stored, 2)
	require.Zero(t, stored[0].UserID)
	require.NotNil(t, stored[0].ObjectID)
	require.Equal(t, uint(3), *stored[0].ObjectID)
	require.Equal(t, uint(8), stored[1].UserID)
	require.Nil(t, stored[1].ObjectID)

	require.Equal(t, "lms.response.submitted", EventSubject("lms", models.EventResponseSubmitted))
}

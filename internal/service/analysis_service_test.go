package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-feedback-api/internal/models"
)

// respond stores an identified response with one value per item.
func (f *fixture) respond(t *testing.T, feedbackID, userID, courseID uint, values map[uint]string) models.Completed {
	t.Helper()
	return f.submitted(t, models.Completed{
		FeedbackID:        feedbackID,
		UserID:            userID,
		CourseID:          courseID,
		AnonymousResponse: models.AnonymousNo,
		TimeModified:      time.Now(),
	}, values)
}

func newAnalysisFixture(t *testing.T) (*fixture, AnalysisService) {
	t.Helper()
	f := newFixture(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return f, NewAnalysisService(f.stores, f.settings, client, time.Minute, testLogger())
}

func TestAnalysisServiceAggregatesAndCaches(t *testing.T) {
	f, svc := newAnalysisFixture(t)
	ctx := context.Background()

	feedback := f.feedback(t, models.Feedback{CourseID: 2})
	list := f.items(t, feedback.ID, numericItem(), radio("yes", "no"))
	hours, choice := list[0], list[1]
	f.respond(t, feedback.ID, 10, 2, map[uint]string{hours.ID: "4", choice.ID: "1"})
	f.respond(t, feedback.ID, 11, 2, map[uint]string{hours.ID: "6", choice.ID: "2"})

	scope := Scope{FeedbackID: feedback.ID, Actor: teacher(1)}
	result, err := svc.Analysis(ctx, scope, 0)
	require.NoError(t, err)
	require.False(t, result.CacheHit)
	require.EqualValues(t, 2, result.CompletedCount)
	require.Equal(t, 2, result.ItemsCount)
	require.Empty(t, result.Warnings)
	require.Len(t, result.ItemsData, 2)
	require.NotNil(t, result.ItemsData[0].Data.Average)
	require.InDelta(t, 5.0, *result.ItemsData[0].Data.Average, 0.0001)
	require.Equal(t, 2, result.ItemsData[1].Data.Total)

	cached, err := svc.Analysis(ctx, scope, 0)
	require.NoError(t, err)
	require.True(t, cached.CacheHit)
	require.EqualValues(t, 2, cached.CompletedCount)

	f.respond(t, feedback.ID, 12, 2, map[uint]string{hours.ID: "8"})
	stale, err := svc.Analysis(ctx, scope, 0)
	require.NoError(t, err)
	require.True(t, stale.CacheHit)
	require.EqualValues(t, 2, stale.CompletedCount)

	svc.Invalidate(ctx, feedback.ID)
	fresh, err := svc.Analysis(ctx, scope, 0)
	require.NoError(t, err)
	require.False(t, fresh.CacheHit)
	require.EqualValues(t, 3, fresh.CompletedCount)
	require.InDelta(t, 6.0, *fresh.ItemsData[0].Data.Average, 0.0001)
}

func TestAnalysisServiceWithoutCache(t *testing.T) {
	f := newFixture(t)
	svc := NewAnalysisService(f.stores, f.settings, nil, 0, testLogger())
	ctx := context.Background()

	feedback := f.feedback(t, models.Feedback{CourseID: 2})
	f.items(t, feedback.ID, numericItem())

	svc.Invalidate(ctx, feedback.ID)
	for i := 0; i < 2; i++ {
		result, err := svc.Analysis(ctx, Scope{FeedbackID: feedback.ID, Actor: teacher(1)}, 0)
		require.NoError(t, err)
		require.False(t, result.CacheHit)
		require.Len(t, result.Warnings, 1)
		require.Equal(t, WarningNoResponses, result.Warnings[0].WarningCode)
	}
}

func TestAnalysisServiceRestrictsStudents(t *testing.T) {
	f, svc := newAnalysisFixture(t)
	ctx := context.Background()

	hidden := f.feedback(t, models.Feedback{CourseID: 2})
	_, err := svc.Analysis(ctx, Scope{FeedbackID: hidden.ID, Actor: student(10)}, 0)
	require.ErrorIs(t, err, ErrPermissionDenied)

	published := f.feedback(t, models.Feedback{CourseID: 2, PublishStats: true})
	list := f.items(t, published.ID, numericItem())
	scope := Scope{FeedbackID: published.ID, Actor: student(10)}

	_, err = svc.Analysis(ctx, scope, 0)
	require.ErrorIs(t, err, ErrPermissionDenied)

	f.respond(t, published.ID, 10, 2, map[uint]string{list[0].ID: "3"})
	_, err = svc.Analysis(ctx, scope, 0)
	require.ErrorIs(t, err, ErrPermissionDenied)

	f.enrolledStudent(t, 2, 10)
	result, err := svc.Analysis(ctx, scope, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, result.CompletedCount)

	_, err = svc.Analysis(ctx, scope, 7)
	require.ErrorIs(t, err, ErrNotInGroup)

	_, err = svc.Analysis(ctx, Scope{FeedbackID: published.ID}, 0)
	require.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.Analysis(ctx, Scope{FeedbackID: 999, Actor: teacher(1)}, 0)
	require.ErrorIs(t, err, ErrFeedbackNotFound)
}

func TestAnalysisServiceWarnsOnSmallAnonymousGroups(t *testing.T) {
	f, svc := newAnalysisFixture(t)
	ctx := context.Background()

	feedback := f.feedback(t, models.Feedback{CourseID: 2, Anonymous: models.AnonymousYes})
	list := f.items(t, feedback.ID, numericItem())
	f.create(t, &models.GroupMember{GroupID: 7, UserID: 10})
	f.respond(t, feedback.ID, 10, 2, map[uint]string{list[0].ID: "5"})
	f.respond(t, feedback.ID, 11, 2, map[uint]string{list[0].ID: "9"})

	small, err := svc.Analysis(ctx, Scope{FeedbackID: feedback.ID, Actor: teacher(1)}, 7)
	require.NoError(t, err)
	require.EqualValues(t, 1, small.CompletedCount)
	require.Empty(t, small.ItemsData)
	require.Len(t, small.Warnings, 1)
	require.Equal(t, WarningInsufficientResponses, small.Warnings[0].WarningCode)

	f.create(t, &models.GroupMember{GroupID: 7, UserID: 11})
	svc.Invalidate(ctx, feedback.ID)
	enough, err := svc.Analysis(ctx, Scope{FeedbackID: feedback.ID, Actor: teacher(1)}, 7)
	require.NoError(t, err)
	require.EqualValues(t, 2, enough.CompletedCount)
	require.Empty(t, enough.Warnings)
	require.ElementsMatch(t, []string{"5", "9"}, enough.ItemsData[0].Data.Values)
}

func TestAnalysisServiceComparesCourses(t *testing.T) {
	f, svc := newAnalysisFixture(t)
	ctx := context.Background()

	f.create(t,
		&models.Course{ID: 3, ShortName: "MATH", SortOrder: 1},
		&models.Course{ID: 4, ShortName: "ART", SortOrder: 2},
	)
	feedback := f.feedback(t, models.Feedback{CourseID: f.settings.SiteCourseID})
	list := f.items(t, feedback.ID, numericItem(), textfield())
	hours, comment := list[0], list[1]

	f.respond(t, feedback.ID, 10, 3, map[uint]string{hours.ID: "2", comment.ID: "fine"})
	f.respond(t, feedback.ID, 11, 3, map[uint]string{hours.ID: "4"})
	f.respond(t, feedback.ID, 12, 4, map[uint]string{hours.ID: "8"})

	result, err := svc.CourseAnalysis(ctx, feedback.ID, hours.ID)
	require.NoError(t, err)
	require.Len(t, result.Courses, 2)
	require.Equal(t, "ART", result.Courses[0].ShortName)
	require.InDelta(t, 8.0, result.Courses[0].Average, 0.0001)
	require.Equal(t, "MATH", result.Courses[1].ShortName)
	require.Equal(t, 2, result.Courses[1].Count)
	require.InDelta(t, 3.0, result.Courses[1].Average, 0.0001)

	_, err = svc.CourseAnalysis(ctx, feedback.ID, comment.ID)
	require.ErrorIs(t, err, ErrInvalidItem)

	_, err = svc.CourseAnalysis(ctx, feedback.ID+1, hours.ID)
	require.ErrorIs(t, err, ErrItemNotFound)

	courses, err := svc.CompletedCourses(ctx, Scope{FeedbackID: feedback.ID, Actor: teacher(1)})
	require.NoError(t, err)
	require.Len(t, courses, 2)
	require.Equal(t, uint(3), courses[0].ID)

	scoped, err := svc.Analysis(ctx, Scope{FeedbackID: feedback.ID, CourseID: 3, Actor: teacher(1)}, 0)
	require.NoError(t, err)
	require.EqualValues(t, 2, scoped.CompletedCount)
	require.InDelta(t, 3.0, *scoped.ItemsData[0].Data.Average, 0.0001)
}

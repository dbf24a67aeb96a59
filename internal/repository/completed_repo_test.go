package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-feedback-api/internal/models"
)

func TestCompletedRepositoryFiltersByGroupAndCourse(t *testing.T) {
	db := setupFeedbackTestDB(t)
	repo := NewCompletedRepository(db)
	ctx := context.Background()

	now := time.Now()
	rows := []models.Completed{
		{FeedbackID: 1, UserID: 1, CourseID: 10, AnonymousResponse: models.AnonymousNo, TimeModified: now},
		{FeedbackID: 1, UserID: 2, CourseID: 11, AnonymousResponse: models.AnonymousNo, TimeModified: now.Add(time.Minute)},
		{FeedbackID: 1, UserID: 3, CourseID: 10, AnonymousResponse: models.AnonymousYes, TimeModified: now.Add(2 * time.Minute)},
		{FeedbackID: 2, UserID: 1, CourseID: 10, AnonymousResponse: models.AnonymousNo, TimeModified: now},
	}
	require.NoError(t, db.Create(&rows).Error)
	require.NoError(t, db.Create(&[]models.GroupMember{{GroupID: 5, UserID: 1}, {GroupID: 5, UserID: 3}}).Error)

	total, err := repo.Count(ctx, CompletedFilter{FeedbackID: 1, GroupID: 5})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)

	total, err = repo.Count(ctx, CompletedFilter{FeedbackID: 1, CourseID: 10})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)

	list, total, err := repo.List(ctx, CompletedFilter{FeedbackID: 1, Anonymous: models.AnonymousNo, Page: 1, PageSize: 1})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, list, 1)
	require.Equal(t, uint(2), list[0].UserID, "newest first by default")

	courses, err := repo.CourseIDs(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []uint{10, 11}, courses)

	exists, err := repo.Exists(ctx, 1, 2, 10)
	require.NoError(t, err)
	require.False(t, exists)

	last, err := repo.FindLast(ctx, 1, 3, 0)
	require.Error(t, err, "anonymous responses are never resumed")
	require.Zero(t, last.ID)
}

func TestCompletedRepositoryItemValuesIgnoresEmpty(t *testing.T) {
	db := setupFeedbackTestDB(t)
	repo := NewCompletedRepository(db)
	ctx := context.Background()

	completed := models.Completed{FeedbackID: 1, UserID: 1, CourseID: 3}
	require.NoError(t, db.Create(&completed).Error)
	require.NoError(t, db.Create(&[]models.Value{
		{CompletedID: completed.ID, ItemID: 7, CourseID: 3, Value: "1"},
		{CompletedID: completed.ID, ItemID: 7, CourseID: 3, Value: "0"},
		{CompletedID: completed.ID, ItemID: 7, CourseID: 3, Value: ""},
	}).Error)

	all, err := repo.ItemValues(ctx, 7, ValueFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	answered, err := repo.ItemValues(ctx, 7, ValueFilter{IgnoreEmpty: true})
	require.NoError(t, err)
	require.Len(t, answered, 1)

	otherCourse, err := repo.ItemValues(ctx, 7, ValueFilter{CourseID: 4})
	require.NoError(t, err)
	require.Empty(t, otherCourse)
}

func TestCompletedRepositoryRandomResponsesAndDelete(t *testing.T) {
	db := setupFeedbackTestDB(t)
	repo := NewCompletedRepository(db)
	ctx := context.Background()

	rows := []models.Completed{
		{FeedbackID: 1, AnonymousResponse: models.AnonymousYes},
		{FeedbackID: 1, AnonymousResponse: models.AnonymousYes},
	}
	require.NoError(t, db.Create(&rows).Error)

	unshuffled, err := repo.CountUnshuffled(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), unshuffled)

	ids, err := repo.AnonymousIDs(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, repo.AssignRandomResponses(ctx, map[uint]int{ids[0]: 2, ids[1]: 1}))

	unshuffled, err = repo.CountUnshuffled(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, unshuffled)

	require.NoError(t, repo.Delete(ctx, ids[0]))
	require.Error(t, repo.Delete(ctx, ids[0]))

	removed, err := repo.DeleteAll(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
}

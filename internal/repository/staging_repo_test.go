package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-feedback-api/internal/models"
)

func TestStagingRepositorySaveValuesUpserts(t *testing.T) {
	db := setupFeedbackTestDB(t)
	repo := NewStagingRepository(db)
	ctx := context.Background()

	tmp := models.CompletedTmp{FeedbackID: 1, UserID: 10, AnonymousResponse: models.AnonymousNo, TimeModified: time.Now()}
	require.NoError(t, repo.Create(ctx, &tmp, nil))

	require.NoError(t, repo.SaveValues(ctx, tmp.ID, []models.ValueTmp{{ItemID: 1, Value: "a"}, {ItemID: 2, Value: "b"}}))
	require.NoError(t, repo.SaveValues(ctx, tmp.ID, []models.ValueTmp{{ItemID: 1, Value: "changed"}}))

	values, err := repo.ListValues(ctx, tmp.ID)
	require.NoError(t, err)
	require.Len(t, values, 2)
	byItem := map[uint]string{}
	for _, value := range values {
		byItem[value.ItemID] = value.Value
	}
	require.Equal(t, "changed", byItem[1])
	require.Equal(t, "b", byItem[2])

	found, err := repo.FindCurrent(ctx, 1, 10, "", 0)
	require.NoError(t, err)
	require.Equal(t, tmp.ID, found.ID)

	_, err = repo.FindCurrent(ctx, 1, 0, "", 0)
	require.Error(t, err)
}

func TestStagingRepositoryGuestSessionsAreSeparate(t *testing.T) {
	db := setupFeedbackTestDB(t)
	repo := NewStagingRepository(db)
	ctx := context.Background()

	guest := models.CompletedTmp{FeedbackID: 2, GuestID: "session-a"}
	require.NoError(t, repo.Create(ctx, &guest, []models.ValueTmp{{ItemID: 3, Value: "seed"}}))

	found, err := repo.FindCurrent(ctx, 2, 0, "session-a", 0)
	require.NoError(t, err)
	require.Equal(t, guest.ID, found.ID)

	_, err = repo.FindCurrent(ctx, 2, 0, "session-b", 0)
	require.Error(t, err)

	values, err := repo.ListValues(ctx, guest.ID)
	require.NoError(t, err)
	require.Len(t, values, 1)
}

func TestStagingRepositoryPromoteLeavesNoStagingRows(t *testing.T) {
	db := setupFeedbackTestDB(t)
	repo := NewStagingRepository(db)
	ctx := context.Background()

	tmp := models.CompletedTmp{FeedbackID: 3, UserID: 4}
	require.NoError(t, repo.Create(ctx, &tmp, []models.ValueTmp{{ItemID: 1, Value: "1"}, {ItemID: 2, Value: "2"}}))

	target := models.Completed{FeedbackID: 3, UserID: 4, AnonymousResponse: models.AnonymousNo, TimeModified: time.Now()}
	require.NoError(t, repo.Promote(ctx, tmp, &target, []models.Value{{ItemID: 1, Value: "1"}}))
	require.NotZero(t, target.ID)

	var tmpRows, tmpValues, values int64
	require.NoError(t, db.Model(&models.CompletedTmp{}).Count(&tmpRows).Error)
	require.NoError(t, db.Model(&models.ValueTmp{}).Count(&tmpValues).Error)
	require.NoError(t, db.Model(&models.Value{}).Where("completed_id = ?", target.ID).Count(&values).Error)
	require.Zero(t, tmpRows)
	require.Zero(t, tmpValues)
	require.Equal(t, int64(1), values)

	second := models.CompletedTmp{FeedbackID: 3, UserID: 4}
	require.NoError(t, repo.Create(ctx, &second, nil))
	require.NoError(t, repo.Promote(ctx, second, &target, []models.Value{{ItemID: 2, Value: "2"}}))

	var completeds int64
	require.NoError(t, db.Model(&models.Completed{}).Count(&completeds).Error)
	require.Equal(t, int64(1), completeds, "existing response is overwritten")

	var stored []models.Value
	require.NoError(t, db.Where("completed_id = ?", target.ID).Find(&stored).Error)
	require.Len(t, stored, 1)
	require.Equal(t, uint(2), stored[0].ItemID)
}

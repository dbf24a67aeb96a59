package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-feedback-api/internal/models"
)

// StagingRepository persists in-progress responses and promotes them.
type StagingRepository interface {
	FindCurrent(ctx context.Context, feedbackID, userID uint, guestID string, courseID uint) (models.CompletedTmp, error)
	Create(ctx context.Context, tmp *models.CompletedTmp, seed []models.ValueTmp) error
	Touch(ctx context.Context, id uint, at time.Time) error
	ListValues(ctx context.Context, tmpID uint) ([]models.ValueTmp, error)
	SaveValues(ctx context.Context, tmpID uint, values []models.ValueTmp) error
	StartedUserIDs(ctx context.Context, feedbackID uint) ([]uint, error)
	Promote(ctx context.Context, tmp models.CompletedTmp, target *models.Completed, values []models.Value) error
}

type stagingRepository struct {
	db *gorm.DB
}

// NewStagingRepository constructs the repository implementation.
func NewStagingRepository(db *gorm.DB) StagingRepository {
	return &stagingRepository{db: db}
}

// FindCurrent returns the open staging row of a user, or of a guest session when userID is zero.
func (r *stagingRepository) FindCurrent(ctx context.Context, feedbackID, userID uint, guestID string, courseID uint) (models.CompletedTmp, error) {
	query := r.db.WithContext(ctx).Where("feedback_id = ?", feedbackID)
	if userID > 0 {
		query = query.Where("user_id = ?", userID)
	} else {
		if guestID == "" {
			return models.CompletedTmp{}, gorm.ErrRecordNotFound
		}
		query = query.Where("user_id = 0 AND guest_id = ?", guestID)
	}
	if courseID > 0 {
		query = query.Where("course_id = ?", courseID)
	}

	var tmp models.CompletedTmp
	if err := query.Order("id DESC").First(&tmp).Error; err != nil {
		return models.CompletedTmp{}, err
	}
	return tmp, nil
}

func (r *stagingRepository) Create(ctx context.Context, tmp *models.CompletedTmp, seed []models.ValueTmp) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Values").Create(tmp).Error; err != nil {
			return err
		}
		if len(seed) == 0 {
			return nil
		}
		for i := range seed {
			seed[i].ID = 0
			seed[i].CompletedID = tmp.ID
		}
		return tx.Create(&seed).Error
	})
}

func (r *stagingRepository) Touch(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.CompletedTmp{}).
		Where("id = ?", id).
		Update("time_modified", at).Error
}

func (r *stagingRepository) ListValues(ctx context.Context, tmpID uint) ([]models.ValueTmp, error) {
	var values []models.ValueTmp
	err := r.db.WithContext(ctx).
		Where("completed_id = ?", tmpID).
		Order("id ASC").
		Find(&values).Error
	return values, err
}

// SaveValues inserts or replaces one staged value per item.
func (r *stagingRepository) SaveValues(ctx context.Context, tmpID uint, values []models.ValueTmp) error {
	if len(values) == 0 {
		return nil
	}
	for i := range values {
		values[i].ID = 0
		values[i].CompletedID = tmpID
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "completed_id"}, {Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "course_id"}),
	}).Create(&values).Error
}

func (r *stagingRepository) StartedUserIDs(ctx context.Context, feedbackID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.CompletedTmp{}).
		Where("feedback_id = ? AND user_id > 0", feedbackID).
		Distinct().
		Pluck("user_id", &ids).Error
	return ids, err
}

// Promote writes values to target (created when its id is zero, otherwise
// overwritten) and drops the staging rows in the same transaction.
func (r *stagingRepository) Promote(ctx context.Context, tmp models.CompletedTmp, target *models.Completed, values []models.Value) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if target.ID > 0 {
			if err := tx.Where("completed_id = ?", target.ID).Delete(&models.Value{}).Error; err != nil {
				return err
			}
			if err := tx.Omit("Values").Save(target).Error; err != nil {
				return err
			}
		} else if err := tx.Omit("Values").Create(target).Error; err != nil {
			return err
		}

		if len(values) > 0 {
			for i := range values {
				values[i].ID = 0
				values[i].CompletedID = target.ID
			}
			if err := tx.Create(&values).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("completed_id = ?", tmp.ID).Delete(&models.ValueTmp{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.CompletedTmp{}, tmp.ID).Error
	})
}

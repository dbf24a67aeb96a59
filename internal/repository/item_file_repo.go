package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-feedback-api/internal/models"
)

// ItemFileRepository persists metadata about item attachments.
type ItemFileRepository interface {
	Create(ctx context.Context, file *models.ItemFile) error
	ListByItems(ctx context.Context, itemIDs []uint) ([]models.ItemFile, error)
	GetByID(ctx context.Context, id uint) (models.ItemFile, error)
	Delete(ctx context.Context, id uint) error
	CountByPublicID(ctx context.Context, publicID string) (int64, error)
}

type itemFileRepository struct {
	db *gorm.DB
}

// NewItemFileRepository constructs a repository for item attachments.
func NewItemFileRepository(db *gorm.DB) ItemFileRepository {
	return &itemFileRepository{db: db}
}

func (r *itemFileRepository) Create(ctx context.Context, file *models.ItemFile) error {
	return r.db.WithContext(ctx).Create(file).Error
}

func (r *itemFileRepository) ListByItems(ctx context.Context, itemIDs []uint) ([]models.ItemFile, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	var files []models.ItemFile
	err := r.db.WithContext(ctx).Where("item_id IN ?", itemIDs).Order("id ASC").Find(&files).Error
	return files, err
}

func (r *itemFileRepository) GetByID(ctx context.Context, id uint) (models.ItemFile, error) {
	var file models.ItemFile
	if err := r.db.WithContext(ctx).First(&file, id).Error; err != nil {
		return models.ItemFile{}, err
	}
	return file, nil
}

func (r *itemFileRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.ItemFile{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountByPublicID reports how many attachments share a stored asset; copies
// made by templates point at the same asset.
func (r *itemFileRepository) CountByPublicID(ctx context.Context, publicID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.ItemFile{}).Where("public_id = ?", publicID).Count(&total).Error
	return total, err
}

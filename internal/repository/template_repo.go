package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-feedback-api/internal/models"
)

// Template list scopes.
const (
	TemplateScopeAll    = ""
	TemplateScopeOwn    = "own"
	TemplateScopePublic = "public"
)

// TemplateRepository exposes persistence helpers for item templates.
type TemplateRepository interface {
	Create(ctx context.Context, template *models.Template) error
	GetByID(ctx context.Context, id uint) (models.Template, error)
	List(ctx context.Context, courseID uint, scope string) ([]models.Template, error)
	Delete(ctx context.Context, id uint) error
}

type templateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository constructs the repository implementation.
func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) Create(ctx context.Context, template *models.Template) error {
	return r.db.WithContext(ctx).Create(template).Error
}

func (r *templateRepository) GetByID(ctx context.Context, id uint) (models.Template, error) {
	var template models.Template
	if err := r.db.WithContext(ctx).First(&template, id).Error; err != nil {
		return models.Template{}, err
	}
	return template, nil
}

// List returns course templates for "own", public ones for "public" and both otherwise.
func (r *templateRepository) List(ctx context.Context, courseID uint, scope string) ([]models.Template, error) {
	query := r.db.WithContext(ctx).Model(&models.Template{})
	switch scope {
	case TemplateScopeOwn:
		query = query.Where("course_id = ? AND ispublic = ?", courseID, false)
	case TemplateScopePublic:
		query = query.Where("ispublic = ?", true)
	default:
		query = query.Where("course_id = ? OR ispublic = ?", courseID, true)
	}

	var templates []models.Template
	err := query.Order("name ASC, id ASC").Find(&templates).Error
	return templates, err
}

func (r *templateRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		itemIDs := tx.Model(&models.Item{}).Select("id").Where("template_id = ?", id)
		if err := tx.Where("item_id IN (?)", itemIDs).Delete(&models.GradedQuestion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("item_id IN (?)", itemIDs).Delete(&models.ItemFile{}).Error; err != nil {
			return err
		}
		if err := tx.Where("template_id = ?", id).Delete(&models.Item{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Template{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

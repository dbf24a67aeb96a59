package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-feedback-api/internal/models"
)

// CompletedFilter narrows response queries.
type CompletedFilter struct {
	FeedbackID uint
	GroupID    uint
	CourseID   uint
	UserID     uint
	Anonymous  int
	Sort       string
	Page       int
	PageSize   int
}

// ValueFilter narrows per item answer queries.
type ValueFilter struct {
	GroupID     uint
	CourseID    uint
	IgnoreEmpty bool
}

// CourseValue is a numeric-capable answer tagged with the course it was given in.
type CourseValue struct {
	CourseID uint
	Value    string
}

var completedSorts = map[string]string{
	"":                 "feedback_completed.time_modified DESC, feedback_completed.id DESC",
	"time_modified":    "feedback_completed.time_modified ASC, feedback_completed.id ASC",
	"-time_modified":   "feedback_completed.time_modified DESC, feedback_completed.id DESC",
	"mark":             "feedback_completed.mark ASC, feedback_completed.id ASC",
	"-mark":            "feedback_completed.mark DESC, feedback_completed.id DESC",
	"random_response":  "feedback_completed.random_response ASC",
	"-random_response": "feedback_completed.random_response DESC",
	"lastname":         "users.last_name ASC, users.first_name ASC, feedback_completed.id ASC",
	"firstname":        "users.first_name ASC, users.last_name ASC, feedback_completed.id ASC",
}

// ValidCompletedSort reports whether sort is accepted by List.
func ValidCompletedSort(sort string) bool {
	_, ok := completedSorts[sort]
	return ok
}

// CompletedRepository exposes persistence helpers for submitted responses.
type CompletedRepository interface {
	GetByID(ctx context.Context, id uint) (models.Completed, error)
	FindLast(ctx context.Context, feedbackID, userID, courseID uint) (models.Completed, error)
	Exists(ctx context.Context, feedbackID, userID, courseID uint) (bool, error)
	List(ctx context.Context, filter CompletedFilter) ([]models.Completed, int64, error)
	Count(ctx context.Context, filter CompletedFilter) (int64, error)
	CourseIDs(ctx context.Context, feedbackID uint) ([]uint, error)
	UserIDs(ctx context.Context, feedbackID uint) ([]uint, error)
	Delete(ctx context.Context, id uint) error
	DeleteAll(ctx context.Context, feedbackID uint) (int64, error)
	CountUnshuffled(ctx context.Context, feedbackID uint) (int64, error)
	AnonymousIDs(ctx context.Context, feedbackID uint) ([]uint, error)
	AssignRandomResponses(ctx context.Context, numbers map[uint]int) error
	UpdateMarks(ctx context.Context, marks map[uint]float64) error
	ListValues(ctx context.Context, completedIDs []uint) ([]models.Value, error)
	ItemValues(ctx context.Context, itemID uint, filter ValueFilter) ([]models.Value, error)
	CourseValues(ctx context.Context, itemID uint) ([]CourseValue, error)
}

type completedRepository struct {
	db *gorm.DB
}

// NewCompletedRepository constructs the repository implementation.
func NewCompletedRepository(db *gorm.DB) CompletedRepository {
	return &completedRepository{db: db}
}

func (r *completedRepository) GetByID(ctx context.Context, id uint) (models.Completed, error) {
	var completed models.Completed
	err := r.db.WithContext(ctx).
		Preload("Values", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&completed, id).Error
	if err != nil {
		return models.Completed{}, err
	}
	return completed, nil
}

// FindLast returns the identified response of a user, scoped to courseID when set.
func (r *completedRepository) FindLast(ctx context.Context, feedbackID, userID, courseID uint) (models.Completed, error) {
	query := r.db.WithContext(ctx).
		Where("feedback_id = ? AND user_id = ? AND anonymous_response = ?", feedbackID, userID, models.AnonymousNo)
	if courseID > 0 {
		query = query.Where("course_id = ?", courseID)
	}

	var completed models.Completed
	if err := query.Order("time_modified DESC, id DESC").First(&completed).Error; err != nil {
		return models.Completed{}, err
	}
	return completed, nil
}

func (r *completedRepository) Exists(ctx context.Context, feedbackID, userID, courseID uint) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Completed{}).
		Where("feedback_id = ? AND user_id = ?", feedbackID, userID)
	if courseID > 0 {
		query = query.Where("course_id = ?", courseID)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return false, err
	}
	return total > 0, nil
}

func (r *completedRepository) filtered(ctx context.Context, filter CompletedFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Completed{}).
		Where("feedback_completed.feedback_id = ?", filter.FeedbackID)
	if filter.GroupID > 0 {
		members := r.db.Model(&models.GroupMember{}).Select("user_id").Where("group_id = ?", filter.GroupID)
		query = query.Where("feedback_completed.user_id IN (?)", members)
	}
	if filter.CourseID > 0 {
		query = query.Where("feedback_completed.course_id = ?", filter.CourseID)
	}
	if filter.UserID > 0 {
		query = query.Where("feedback_completed.user_id = ?", filter.UserID)
	}
	if filter.Anonymous > 0 {
		query = query.Where("feedback_completed.anonymous_response = ?", filter.Anonymous)
	}
	return query
}

func (r *completedRepository) List(ctx context.Context, filter CompletedFilter) ([]models.Completed, int64, error) {
	query := r.filtered(ctx, filter)

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order, ok := completedSorts[filter.Sort]
	if !ok {
		order = completedSorts[""]
	}
	if strings.Contains(order, "users.") {
		query = query.Joins("LEFT JOIN users ON users.id = feedback_completed.user_id")
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var completeds []models.Completed
	if err := query.Select("feedback_completed.*").Order(order).Find(&completeds).Error; err != nil {
		return nil, 0, err
	}
	return completeds, total, nil
}

func (r *completedRepository) Count(ctx context.Context, filter CompletedFilter) (int64, error) {
	var total int64
	err := r.filtered(ctx, filter).Distinct("feedback_completed.id").Count(&total).Error
	return total, err
}

func (r *completedRepository) CourseIDs(ctx context.Context, feedbackID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Completed{}).
		Where("feedback_id = ? AND course_id > 0", feedbackID).
		Distinct().
		Order("course_id ASC").
		Pluck("course_id", &ids).Error
	return ids, err
}

func (r *completedRepository) UserIDs(ctx context.Context, feedbackID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Completed{}).
		Where("feedback_id = ? AND user_id > 0", feedbackID).
		Distinct().
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *completedRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("completed_id = ?", id).Delete(&models.Value{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Completed{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *completedRepository) DeleteAll(ctx context.Context, feedbackID uint) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := tx.Model(&models.Completed{}).Select("id").Where("feedback_id = ?", feedbackID)
		if err := tx.Where("completed_id IN (?)", ids).Delete(&models.Value{}).Error; err != nil {
			return err
		}
		result := tx.Where("feedback_id = ?", feedbackID).Delete(&models.Completed{})
		removed = result.RowsAffected
		return result.Error
	})
	return removed, err
}

func (r *completedRepository) CountUnshuffled(ctx context.Context, feedbackID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Completed{}).
		Where("feedback_id = ? AND anonymous_response = ? AND random_response = 0", feedbackID, models.AnonymousYes).
		Count(&total).Error
	return total, err
}

func (r *completedRepository) AnonymousIDs(ctx context.Context, feedbackID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Completed{}).
		Where("feedback_id = ? AND anonymous_response = ?", feedbackID, models.AnonymousYes).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *completedRepository) AssignRandomResponses(ctx context.Context, numbers map[uint]int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, number := range numbers {
			if err := tx.Model(&models.Completed{}).Where("id = ?", id).Update("random_response", number).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *completedRepository) UpdateMarks(ctx context.Context, marks map[uint]float64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, mark := range marks {
			if err := tx.Model(&models.Completed{}).Where("id = ?", id).Update("mark", mark).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *completedRepository) ListValues(ctx context.Context, completedIDs []uint) ([]models.Value, error) {
	if len(completedIDs) == 0 {
		return nil, nil
	}
	var values []models.Value
	err := r.db.WithContext(ctx).
		Where("completed_id IN ?", completedIDs).
		Order("completed_id ASC, id ASC").
		Find(&values).Error
	return values, err
}

func (r *completedRepository) ItemValues(ctx context.Context, itemID uint, filter ValueFilter) ([]models.Value, error) {
	query := r.db.WithContext(ctx).Model(&models.Value{}).
		Joins("JOIN feedback_completed ON feedback_completed.id = feedback_values.completed_id").
		Where("feedback_values.item_id = ?", itemID)

	if filter.IgnoreEmpty {
		query = query.Where("feedback_values.value <> ? AND feedback_values.value <> ?", "", "0")
	}
	if filter.GroupID > 0 {
		members := r.db.Model(&models.GroupMember{}).Select("user_id").Where("group_id = ?", filter.GroupID)
		query = query.Where("feedback_completed.user_id IN (?)", members)
	} else if filter.CourseID > 0 {
		query = query.Where("feedback_values.course_id = ?", filter.CourseID)
	}

	var values []models.Value
	err := query.Select("feedback_values.*").
		Order("feedback_completed.time_modified ASC, feedback_values.id ASC").
		Find(&values).Error
	return values, err
}

func (r *completedRepository) CourseValues(ctx context.Context, itemID uint) ([]CourseValue, error) {
	var rows []CourseValue
	err := r.db.WithContext(ctx).Model(&models.Value{}).
		Select("course_id, value").
		Where("item_id = ? AND value <> ''", itemID).
		Order("course_id ASC, id ASC").
		Scan(&rows).Error
	return rows, err
}

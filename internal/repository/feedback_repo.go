package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-feedback-api/internal/models"
)

// FeedbackRepository exposes persistence helpers for feedback activities.
type FeedbackRepository interface {
	GetByID(ctx context.Context, id uint) (models.Feedback, error)
	ListByCourse(ctx context.Context, courseID uint) ([]models.Feedback, error)
	Create(ctx context.Context, feedback *models.Feedback) error
	Update(ctx context.Context, feedback *models.Feedback) error
	Delete(ctx context.Context, id uint) error
	ListMappedCourses(ctx context.Context, feedbackID uint) ([]uint, error)
	ReplaceCourseMap(ctx context.Context, feedbackID uint, courseIDs []uint) error
	ListForMappedCourse(ctx context.Context, siteCourseID, courseID uint) ([]models.Feedback, error)
}

type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository constructs the repository implementation.
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) GetByID(ctx context.Context, id uint) (models.Feedback, error) {
	var feedback models.Feedback
	if err := r.db.WithContext(ctx).First(&feedback, id).Error; err != nil {
		return models.Feedback{}, err
	}
	return feedback, nil
}

func (r *feedbackRepository) ListByCourse(ctx context.Context, courseID uint) ([]models.Feedback, error) {
	var feedbacks []models.Feedback
	err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("id ASC").
		Find(&feedbacks).Error
	return feedbacks, err
}

func (r *feedbackRepository) Create(ctx context.Context, feedback *models.Feedback) error {
	return r.db.WithContext(ctx).Create(feedback).Error
}

func (r *feedbackRepository) Update(ctx context.Context, feedback *models.Feedback) error {
	return r.db.WithContext(ctx).Save(feedback).Error
}

// Delete removes the feedback with its items, responses and course mapping.
func (r *feedbackRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := purgeFeedbackContent(tx, id); err != nil {
			return err
		}
		if err := tx.Where("feedback_id = ?", id).Delete(&models.SiteCourseMap{}).Error; err != nil {
			return err
		}
		if err := tx.Where("feedback_id = ?", id).Delete(&models.EventLog{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Feedback{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *feedbackRepository) ListMappedCourses(ctx context.Context, feedbackID uint) ([]uint, error) {
	var courseIDs []uint
	err := r.db.WithContext(ctx).Model(&models.SiteCourseMap{}).
		Where("feedback_id = ?", feedbackID).
		Order("course_id ASC").
		Pluck("course_id", &courseIDs).Error
	return courseIDs, err
}

func (r *feedbackRepository) ReplaceCourseMap(ctx context.Context, feedbackID uint, courseIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("feedback_id = ?", feedbackID).Delete(&models.SiteCourseMap{}).Error; err != nil {
			return err
		}
		if len(courseIDs) == 0 {
			return nil
		}
		rows := make([]models.SiteCourseMap, 0, len(courseIDs))
		for _, courseID := range courseIDs {
			rows = append(rows, models.SiteCourseMap{FeedbackID: feedbackID, CourseID: courseID})
		}
		return tx.Create(&rows).Error
	})
}

// ListForMappedCourse returns the site feedbacks usable from a course: those
// mapped to it and those without any mapping.
func (r *feedbackRepository) ListForMappedCourse(ctx context.Context, siteCourseID, courseID uint) ([]models.Feedback, error) {
	mapped := r.db.Model(&models.SiteCourseMap{}).Select("feedback_id").Where("course_id = ?", courseID)
	anyMapping := r.db.Model(&models.SiteCourseMap{}).Select("feedback_id")

	var feedbacks []models.Feedback
	err := r.db.WithContext(ctx).
		Where("course_id = ?", siteCourseID).
		Where("id IN (?) OR id NOT IN (?)", mapped, anyMapping).
		Order("id ASC").
		Find(&feedbacks).Error
	return feedbacks, err
}

// purgeFeedbackContent deletes items, graded answers, files and every
// response of a feedback inside the caller's transaction.
func purgeFeedbackContent(tx *gorm.DB, feedbackID uint) error {
	itemIDs := tx.Model(&models.Item{}).Select("id").Where("feedback_id = ?", feedbackID)
	completedIDs := tx.Model(&models.Completed{}).Select("id").Where("feedback_id = ?", feedbackID)
	tmpIDs := tx.Model(&models.CompletedTmp{}).Select("id").Where("feedback_id = ?", feedbackID)

	steps := []func() error{
		func() error { return tx.Where("completed_id IN (?)", completedIDs).Delete(&models.Value{}).Error },
		func() error { return tx.Where("completed_id IN (?)", tmpIDs).Delete(&models.ValueTmp{}).Error },
		func() error { return tx.Where("feedback_id = ?", feedbackID).Delete(&models.Completed{}).Error },
		func() error { return tx.Where("feedback_id = ?", feedbackID).Delete(&models.CompletedTmp{}).Error },
		func() error { return tx.Where("item_id IN (?)", itemIDs).Delete(&models.GradedQuestion{}).Error },
		func() error { return tx.Where("item_id IN (?)", itemIDs).Delete(&models.ItemFile{}).Error },
		func() error { return tx.Where("feedback_id = ?", feedbackID).Delete(&models.Item{}).Error },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

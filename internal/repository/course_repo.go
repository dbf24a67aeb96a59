package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-feedback-api/internal/models"
)

// EnrolmentFilter narrows enrolment queries.
type EnrolmentFilter struct {
	CourseID       uint
	Roles          []string
	GroupID        uint
	ExcludeUserIDs []uint
	Sort           string
	Offset         int
	Limit          int
}

var enrolmentSorts = map[string]string{
	"firstname":  "users.first_name ASC, users.last_name ASC, enrolments.user_id ASC",
	"lastname":   "users.last_name ASC, users.first_name ASC, enrolments.user_id ASC",
	"lastaccess": "enrolments.last_access DESC, enrolments.user_id ASC",
}

// CourseRepository reads the course, user and group records mirrored from the host platform.
type CourseRepository interface {
	GetCourse(ctx context.Context, id uint) (models.Course, error)
	ListCourses(ctx context.Context, ids []uint) ([]models.Course, error)
	GetUser(ctx context.Context, id uint) (models.User, error)
	ListUsers(ctx context.Context, ids []uint) ([]models.User, error)
	ListEnrolments(ctx context.Context, filter EnrolmentFilter) ([]models.Enrolment, int64, error)
	IsGroupMember(ctx context.Context, groupID, userID uint) (bool, error)
	IsEnrolled(ctx context.Context, courseID, userID uint) (bool, error)
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository constructs the repository implementation.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) GetCourse(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *courseRepository) ListCourses(ctx context.Context, ids []uint) ([]models.Course, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var courses []models.Course
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("sort_order ASC, id ASC").
		Find(&courses).Error
	return courses, err
}

func (r *courseRepository) GetUser(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *courseRepository) ListUsers(ctx context.Context, ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	return users, err
}

func (r *courseRepository) ListEnrolments(ctx context.Context, filter EnrolmentFilter) ([]models.Enrolment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Enrolment{}).
		Joins("JOIN users ON users.id = enrolments.user_id").
		Where("enrolments.course_id = ?", filter.CourseID)

	if len(filter.Roles) > 0 {
		query = query.Where("enrolments.role IN ?", filter.Roles)
	}
	if filter.GroupID > 0 {
		members := r.db.Model(&models.GroupMember{}).Select("user_id").Where("group_id = ?", filter.GroupID)
		query = query.Where("enrolments.user_id IN (?)", members)
	}
	if len(filter.ExcludeUserIDs) > 0 {
		query = query.Where("enrolments.user_id NOT IN ?", filter.ExcludeUserIDs)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order, ok := enrolmentSorts[filter.Sort]
	if !ok {
		order = enrolmentSorts["lastaccess"]
	}
	if filter.Limit > 0 {
		query = query.Offset(filter.Offset).Limit(filter.Limit)
	}

	var enrolments []models.Enrolment
	err := query.Preload("User").
		Select("enrolments.*").
		Order(order).
		Find(&enrolments).Error
	if err != nil {
		return nil, 0, err
	}
	return enrolments, total, nil
}

func (r *courseRepository) IsGroupMember(ctx context.Context, groupID, userID uint) (bool, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&total).Error
	return total > 0, err
}

func (r *courseRepository) IsEnrolled(ctx context.Context, courseID, userID uint) (bool, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Enrolment{}).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		Count(&total).Error
	return total > 0, err
}

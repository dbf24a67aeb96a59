package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-feedback-api/internal/models"
)

// EventLogFilter narrows event log queries.
type EventLogFilter struct {
	FeedbackID uint
	Event      string
	Page       int
	PageSize   int
}

// EventLogRepository persists the feedback audit trail.
type EventLogRepository interface {
	Create(ctx context.Context, entry *models.EventLog) error
	List(ctx context.Context, filter EventLogFilter) ([]models.EventLog, int64, error)
}

type eventLogRepository struct {
	db *gorm.DB
}

// NewEventLogRepository constructs the event log repository.
func NewEventLogRepository(db *gorm.DB) EventLogRepository {
	return &eventLogRepository{db: db}
}

func (r *eventLogRepository) Create(ctx context.Context, entry *models.EventLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *eventLogRepository) List(ctx context.Context, filter EventLogFilter) ([]models.EventLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.EventLog{}).Where("feedback_id = ?", filter.FeedbackID)

	if filter.Event != "" {
		query = query.Where("event = ?", filter.Event)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var entries []models.EventLog
	if err := query.Order("created_at DESC, id DESC").Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

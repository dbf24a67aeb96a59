package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-feedback-api/internal/models"
)

// ItemOwner identifies the feedback or template an item set belongs to.
type ItemOwner struct {
	FeedbackID uint
	TemplateID uint
}

func (o ItemOwner) scope(db *gorm.DB) *gorm.DB {
	if o.TemplateID > 0 {
		return db.Where("template_id = ?", o.TemplateID)
	}
	return db.Where("feedback_id = ? AND template_id = 0", o.FeedbackID)
}

// ItemRepository exposes persistence helpers for feedback items.
type ItemRepository interface {
	List(ctx context.Context, owner ItemOwner) ([]models.Item, error)
	GetByID(ctx context.Context, id uint) (models.Item, error)
	Create(ctx context.Context, item *models.Item) error
	Update(ctx context.Context, item *models.Item) error
	Delete(ctx context.Context, id uint) error
	SavePositions(ctx context.Context, owner ItemOwner, orderedIDs []uint) error
	Count(ctx context.Context, owner ItemOwner) (int64, error)
	BreakPositions(ctx context.Context, feedbackID uint) ([]int, error)
	CopyItems(ctx context.Context, source []models.Item, target ItemOwner, positionOffset int) ([]models.Item, error)
	ImportItems(ctx context.Context, feedbackID uint, source []models.Item, replace bool) ([]models.Item, error)
	ApplyTemplate(ctx context.Context, templateID, feedbackID uint, replace bool) ([]models.Item, error)
	ListGradedQuestions(ctx context.Context, itemIDs []uint) ([]models.GradedQuestion, error)
	SaveGradedQuestion(ctx context.Context, question *models.GradedQuestion) error
}

type itemRepository struct {
	db *gorm.DB
}

// NewItemRepository constructs the repository implementation.
func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) List(ctx context.Context, owner ItemOwner) ([]models.Item, error) {
	var items []models.Item
	err := owner.scope(r.db.WithContext(ctx)).
		Order("position ASC, id ASC").
		Find(&items).Error
	return items, err
}

func (r *itemRepository) GetByID(ctx context.Context, id uint) (models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return models.Item{}, err
	}
	return item, nil
}

func (r *itemRepository) Create(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *itemRepository) Update(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// Delete removes an item with its answers, clears items depending on it and
// renumbers the remaining positions of its owner.
func (r *itemRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.Item
		if err := tx.First(&item, id).Error; err != nil {
			return err
		}

		if err := tx.Where("item_id = ?", id).Delete(&models.Value{}).Error; err != nil {
			return err
		}
		if err := tx.Where("item_id = ?", id).Delete(&models.ValueTmp{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Item{}).
			Where("dependitem = ?", id).
			Updates(map[string]any{"dependitem": 0, "dependvalue": ""}).Error; err != nil {
			return err
		}
		if err := tx.Where("item_id = ?", id).Delete(&models.GradedQuestion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("item_id = ?", id).Delete(&models.ItemFile{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Item{}, id).Error; err != nil {
			return err
		}

		return renumber(tx, ItemOwner{FeedbackID: item.FeedbackID, TemplateID: item.TemplateID})
	})
}

// SavePositions assigns positions 1..N following orderedIDs. Items of the
// owner missing from orderedIDs keep their relative order after the listed ones.
func (r *itemRepository) SavePositions(ctx context.Context, owner ItemOwner, orderedIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, err := lockedItems(tx, owner)
		if err != nil {
			return err
		}

		known := make(map[uint]bool, len(items))
		for _, item := range items {
			known[item.ID] = true
		}

		order := make([]uint, 0, len(items))
		listed := make(map[uint]bool, len(orderedIDs))
		for _, id := range orderedIDs {
			if !known[id] || listed[id] {
				continue
			}
			listed[id] = true
			order = append(order, id)
		}
		for _, item := range items {
			if !listed[item.ID] {
				order = append(order, item.ID)
			}
		}

		return applyPositions(tx, order)
	})
}

func (r *itemRepository) Count(ctx context.Context, owner ItemOwner) (int64, error) {
	var total int64
	err := owner.scope(r.db.WithContext(ctx).Model(&models.Item{})).Count(&total).Error
	return total, err
}

func (r *itemRepository) BreakPositions(ctx context.Context, feedbackID uint) ([]int, error) {
	var positions []int
	err := r.db.WithContext(ctx).Model(&models.Item{}).
		Where("feedback_id = ? AND template_id = 0 AND typ = ?", feedbackID, models.ItemTypePagebreak).
		Order("position ASC").
		Pluck("position", &positions).Error
	return positions, err
}

// CopyItems clones source items into target, rewriting dependitem references
// to the new ids and copying graded answers and attachments.
func (r *itemRepository) CopyItems(ctx context.Context, source []models.Item, target ItemOwner, positionOffset int) ([]models.Item, error) {
	if len(source) == 0 {
		return nil, nil
	}

	var copies []models.Item
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, idMap, err := insertItems(tx, source, target, positionOffset)
		if err != nil {
			return err
		}
		copies = inserted
		return copyItemExtras(tx, idMap)
	})
	if err != nil {
		return nil, err
	}
	return copies, nil
}

// ImportItems appends decoded items to a feedback, optionally replacing its
// current items and responses. Source ids and dependitem values refer to the
// exported document and are remapped to the stored rows.
func (r *itemRepository) ImportItems(ctx context.Context, feedbackID uint, source []models.Item, replace bool) ([]models.Item, error) {
	var imported []models.Item
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if replace {
			if err := purgeFeedbackContent(tx, feedbackID); err != nil {
				return err
			}
		}
		owner := ItemOwner{FeedbackID: feedbackID}
		var count int64
		if err := owner.scope(tx.Model(&models.Item{})).Count(&count).Error; err != nil {
			return err
		}
		inserted, _, err := insertItems(tx, source, owner, int(count))
		if err != nil {
			return err
		}
		imported = inserted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return imported, nil
}

// ApplyTemplate copies the items of a template behind the items of a
// feedback, or in place of them and their responses when replace is set.
func (r *itemRepository) ApplyTemplate(ctx context.Context, templateID, feedbackID uint, replace bool) ([]models.Item, error) {
	var applied []models.Item
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var source []models.Item
		if err := (ItemOwner{TemplateID: templateID}).scope(tx).Order("position ASC, id ASC").Find(&source).Error; err != nil {
			return err
		}
		if replace {
			if err := purgeFeedbackContent(tx, feedbackID); err != nil {
				return err
			}
		}
		owner := ItemOwner{FeedbackID: feedbackID}
		var count int64
		if err := owner.scope(tx.Model(&models.Item{})).Count(&count).Error; err != nil {
			return err
		}
		inserted, idMap, err := insertItems(tx, source, owner, int(count))
		if err != nil {
			return err
		}
		if err := copyItemExtras(tx, idMap); err != nil {
			return err
		}
		applied = inserted
		return renumber(tx, owner)
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

// insertItems stores clones of source under target and points dependitem at
// the clones. Dependencies on items outside source are cleared.
func insertItems(tx *gorm.DB, source []models.Item, target ItemOwner, positionOffset int) ([]models.Item, map[uint]uint, error) {
	copies := make([]models.Item, len(source))
	idMap := make(map[uint]uint, len(source))
	for i, original := range source {
		clone := original
		clone.ID = 0
		clone.FeedbackID = target.FeedbackID
		clone.TemplateID = target.TemplateID
		clone.Position = original.Position + positionOffset
		if err := tx.Create(&clone).Error; err != nil {
			return nil, nil, err
		}
		if original.ID > 0 {
			idMap[original.ID] = clone.ID
		}
		copies[i] = clone
	}

	for i := range copies {
		if copies[i].DependItem == 0 {
			continue
		}
		newID, ok := idMap[copies[i].DependItem]
		if !ok {
			copies[i].DependValue = ""
		}
		copies[i].DependItem = newID
		if err := tx.Model(&models.Item{}).Where("id = ?", copies[i].ID).
			Updates(map[string]any{"dependitem": newID, "dependvalue": copies[i].DependValue}).Error; err != nil {
			return nil, nil, err
		}
	}
	return copies, idMap, nil
}

func copyItemExtras(tx *gorm.DB, idMap map[uint]uint) error {
	if len(idMap) == 0 {
		return nil
	}
	oldIDs := make([]uint, 0, len(idMap))
	for oldID := range idMap {
		oldIDs = append(oldIDs, oldID)
	}

	var questions []models.GradedQuestion
	if err := tx.Where("item_id IN ?", oldIDs).Find(&questions).Error; err != nil {
		return err
	}
	for _, question := range questions {
		question.ID = 0
		question.ItemID = idMap[question.ItemID]
		if err := tx.Create(&question).Error; err != nil {
			return err
		}
	}

	var files []models.ItemFile
	if err := tx.Where("item_id IN ?", oldIDs).Find(&files).Error; err != nil {
		return err
	}
	for _, file := range files {
		file.ID = 0
		file.ItemID = idMap[file.ItemID]
		if err := tx.Create(&file).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *itemRepository) ListGradedQuestions(ctx context.Context, itemIDs []uint) ([]models.GradedQuestion, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	var questions []models.GradedQuestion
	err := r.db.WithContext(ctx).Where("item_id IN ?", itemIDs).Find(&questions).Error
	return questions, err
}

func (r *itemRepository) SaveGradedQuestion(ctx context.Context, question *models.GradedQuestion) error {
	if question.ItemID == 0 {
		return errors.New("graded question requires an item")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"answer", "grade"}),
		}).Create(question).Error; err != nil {
			return err
		}
		return tx.Model(&models.Item{}).Where("id = ?", question.ItemID).Update("is_graded", true).Error
	})
}

func lockedItems(tx *gorm.DB, owner ItemOwner) ([]models.Item, error) {
	var items []models.Item
	query := owner.scope(tx)
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := query.Order("position ASC, id ASC").Find(&items).Error
	return items, err
}

func renumber(tx *gorm.DB, owner ItemOwner) error {
	items, err := lockedItems(tx, owner)
	if err != nil {
		return err
	}
	order := make([]uint, len(items))
	for i, item := range items {
		order[i] = item.ID
	}
	return applyPositions(tx, order)
}

func applyPositions(tx *gorm.DB, order []uint) error {
	for i, id := range order {
		if err := tx.Model(&models.Item{}).Where("id = ?", id).Update("position", i+1).Error; err != nil {
			return err
		}
	}
	return nil
}

package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"kodomo/inventoryhub/internal/model"
)

type gormItemRepository struct {
	db *gorm.DB
}

func (r *gormItemRepository) Create(ctx context.Context, item *model.InventoryItem) error {
	return translateGormErr(r.db.WithContext(ctx).Create(item).Error)
}

func (r *gormItemRepository) GetByID(ctx context.Context, groupID, id string) (*model.InventoryItem, error) {
	var item model.InventoryItem
	err := r.db.WithContext(ctx).
		Where("id = ? AND group_id = ?", id, groupID).
		First(&item).Error
	if err != nil {
		return nil, translateGormErr(err)
	}
	return &item, nil
}

func (r *gormItemRepository) ListByGroup(ctx context.Context, groupID string) ([]model.InventoryItem, error) {
	items := []model.InventoryItem{}
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at ASC").
		Find(&items).Error
	return items, translateGormErr(err)
}

func (r *gormItemRepository) Update(ctx context.Context, item *model.InventoryItem) error {
	return translateGormErr(r.db.WithContext(ctx).Save(item).Error)
}

func (r *gormItemRepository) Delete(ctx context.Context, groupID, id string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND group_id = ?", id, groupID).
		Delete(&model.InventoryItem{})
	if res.Error != nil {
		return translateGormErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormItemRepository) DeleteByCategory(ctx context.Context, groupID, categoryID string) ([]model.InventoryItem, error) {
	var removed []model.InventoryItem
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND category_id = ?", groupID, categoryID).
		Find(&removed).Error
	if err != nil {
		return nil, translateGormErr(err)
	}
	if len(removed) == 0 {
		return nil, nil
	}
	err = r.db.WithContext(ctx).
		Where("group_id = ? AND category_id = ?", groupID, categoryID).
		Delete(&model.InventoryItem{}).Error
	return removed, translateGormErr(err)
}

// ReassignChild moves the child's items to the household. updated_at never
// moves backwards, whatever the caller's clock says.
func (r *gormItemRepository) ReassignChild(ctx context.Context, groupID, childID string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.InventoryItem{}).
		Where("group_id = ? AND child_id = ?", groupID, childID).
		Updates(map[string]any{
			"child_id":   model.SharedChildID,
			"updated_at": gorm.Expr("CASE WHEN updated_at > ? THEN updated_at ELSE ? END", now, now),
		})
	return res.RowsAffected, translateGormErr(res.Error)
}

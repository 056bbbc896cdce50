package repository

import (
	"context"

	"gorm.io/gorm"

	"kodomo/inventoryhub/internal/model"
)

type gormGroupRepository struct {
	db   *gorm.DB
	lock bool
}

func (r *gormGroupRepository) Create(ctx context.Context, group *model.Group) error {
	return translateGormErr(r.db.WithContext(ctx).Create(group).Error)
}

func (r *gormGroupRepository) GetByID(ctx context.Context, id string) (*model.Group, error) {
	var group model.Group
	if err := r.db.WithContext(ctx).First(&group, "id = ?", id).Error; err != nil {
		return nil, translateGormErr(err)
	}
	return &group, nil
}

func (r *gormGroupRepository) GetForUpdate(ctx context.Context, id string) (*model.Group, error) {
	var group model.Group
	if err := forUpdate(r.db.WithContext(ctx), r.lock).First(&group, "id = ?", id).Error; err != nil {
		return nil, translateGormErr(err)
	}
	return &group, nil
}

func (r *gormGroupRepository) ListByIDs(ctx context.Context, ids []string) ([]model.Group, error) {
	groups := []model.Group{}
	if len(ids) == 0 {
		return groups, nil
	}
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("created_at ASC").
		Find(&groups).Error
	return groups, translateGormErr(err)
}

func (r *gormGroupRepository) Update(ctx context.Context, group *model.Group) error {
	return translateGormErr(r.db.WithContext(ctx).Save(group).Error)
}

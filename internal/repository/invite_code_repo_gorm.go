package repository

import (
	"context"

	"gorm.io/gorm"

	"kodomo/inventoryhub/internal/model"
)

type gormInviteCodeRepository struct {
	db *gorm.DB
}

func (r *gormInviteCodeRepository) Create(ctx context.Context, code *model.InviteCode) error {
	return translateGormErr(r.db.WithContext(ctx).Create(code).Error)
}

func (r *gormInviteCodeRepository) GetByID(ctx context.Context, id string) (*model.InviteCode, error) {
	var inviteCode model.InviteCode
	if err := r.db.WithContext(ctx).First(&inviteCode, "id = ?", id).Error; err != nil {
		return nil, translateGormErr(err)
	}
	return &inviteCode, nil
}

func (r *gormInviteCodeRepository) GetByCode(ctx context.Context, code string) (*model.InviteCode, error) {
	var inviteCode model.InviteCode
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&inviteCode).Error; err != nil {
		return nil, translateGormErr(err)
	}
	return &inviteCode, nil
}

func (r *gormInviteCodeRepository) ListByGroup(ctx context.Context, groupID string) ([]model.InviteCode, error) {
	codes := []model.InviteCode{}
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at DESC").
		Find(&codes).Error
	return codes, translateGormErr(err)
}

func (r *gormInviteCodeRepository) IncrementUsedCount(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).
		Model(&model.InviteCode{}).
		Where("id = ?", id).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return translateGormErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive does not report ErrNotFound: MySQL counts only changed rows.
func (r *gormInviteCodeRepository) SetActive(ctx context.Context, id string, active bool) error {
	err := r.db.WithContext(ctx).
		Model(&model.InviteCode{}).
		Where("id = ?", id).
		UpdateColumn("is_active", active).Error
	return translateGormErr(err)
}

func (r *gormInviteCodeRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&model.InviteCode{}, "id = ?", id)
	if res.Error != nil {
		return translateGormErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

package repository

import (
	"context"

	"gorm.io/gorm"

	"kodomo/inventoryhub/internal/model"
)

type gormLinkedAccountRepository struct {
	db *gorm.DB
}

func (r *gormLinkedAccountRepository) Create(ctx context.Context, account *model.LinkedAccount) error {
	return translateGormErr(r.db.WithContext(ctx).Create(account).Error)
}

func (r *gormLinkedAccountRepository) GetByProviderSubject(
	ctx context.Context, provider, subject string,
) (*model.LinkedAccount, error) {
	var account model.LinkedAccount
	err := r.db.WithContext(ctx).
		Where("provider = ? AND subject = ?", provider, subject).
		First(&account).Error
	if err != nil {
		return nil, translateGormErr(err)
	}
	return &account, nil
}

func (r *gormLinkedAccountRepository) ListByUser(ctx context.Context, userID string) ([]model.LinkedAccount, error) {
	var accounts []model.LinkedAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&accounts).Error
	return accounts, translateGormErr(err)
}

func (r *gormLinkedAccountRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&model.LinkedAccount{}, "id = ?", id)
	if res.Error != nil {
		return translateGormErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

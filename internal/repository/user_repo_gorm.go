package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"kodomo/inventoryhub/internal/model"
)

type gormUserRepository struct {
	db *gorm.DB
}

func (r *gormUserRepository) Create(ctx context.Context, user *model.User) error {
	return translateGormErr(r.db.WithContext(ctx).Create(user).Error)
}

func (r *gormUserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translateGormErr(err)
	}
	return &user, nil
}

func (r *gormUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("lower(email) = ?", strings.ToLower(email)).
		First(&user).Error
	if err != nil {
		return nil, translateGormErr(err)
	}
	return &user, nil
}

func (r *gormUserRepository) Update(ctx context.Context, user *model.User) error {
	return translateGormErr(r.db.WithContext(ctx).Save(user).Error)
}

func (r *gormUserRepository) AddGroup(ctx context.Context, userID, groupID string) error {
	return r.editGroups(ctx, userID, func(ids model.StringSlice) model.StringSlice {
		for _, id := range ids {
			if id == groupID {
				return ids
			}
		}
		return append(ids, groupID)
	})
}

func (r *gormUserRepository) RemoveGroup(ctx context.Context, userID, groupID string) error {
	return r.editGroups(ctx, userID, func(ids model.StringSlice) model.StringSlice {
		out := make(model.StringSlice, 0, len(ids))
		for _, id := range ids {
			if id != groupID {
				out = append(out, id)
			}
		}
		return out
	})
}

// editGroups rewrites the group_ids column. JSON columns have no portable
// array-union, so this is a read-modify-write.
func (r *gormUserRepository) editGroups(ctx context.Context, userID string, edit func(model.StringSlice) model.StringSlice) error {
	user, err := r.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		UpdateColumn("group_ids", edit(user.GroupIDs)).Error
	return translateGormErr(err)
}

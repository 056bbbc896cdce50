package repository

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"kodomo/inventoryhub/internal/model"
)

type mongoUserRepository struct {
	c *mongo.Collection
}

func (r *mongoUserRepository) Create(ctx context.Context, user *model.User) error {
	if user.GroupIDs == nil {
		user.GroupIDs = model.StringSlice{}
	}
	_, err := r.c.InsertOne(ctx, user)
	return translateMongoErr(err)
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

func (r *mongoUserRepository) Update(ctx context.Context, user *model.User) error {
	_, err := r.c.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	return translateMongoErr(err)
}

func (r *mongoUserRepository) AddGroup(ctx context.Context, userID, groupID string) error {
	return r.update(ctx, userID, bson.M{"$addToSet": bson.M{"groupIds": groupID}})
}

func (r *mongoUserRepository) RemoveGroup(ctx context.Context, userID, groupID string) error {
	return r.update(ctx, userID, bson.M{"$pull": bson.M{"groupIds": groupID}})
}

func (r *mongoUserRepository) update(ctx context.Context, id string, change bson.M) error {
	res, err := r.c.UpdateByID(ctx, id, change)
	if err != nil {
		return translateMongoErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var user model.User
	if err := r.c.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, translateMongoErr(err)
	}
	return &user, nil
}

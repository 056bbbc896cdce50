package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kodomo/inventoryhub/internal/model"
)

type mongoInviteCodeRepository struct {
	c *mongo.Collection
}

func (r *mongoInviteCodeRepository) Create(ctx context.Context, code *model.InviteCode) error {
	_, err := r.c.InsertOne(ctx, code)
	return translateMongoErr(err)
}

func (r *mongoInviteCodeRepository) GetByID(ctx context.Context, id string) (*model.InviteCode, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoInviteCodeRepository) GetByCode(ctx context.Context, code string) (*model.InviteCode, error) {
	return r.findOne(ctx, bson.M{"code": code})
}

func (r *mongoInviteCodeRepository) ListByGroup(ctx context.Context, groupID string) ([]model.InviteCode, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.c.Find(ctx, bson.M{"groupId": groupID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	codes := []model.InviteCode{}
	if err := cur.All(ctx, &codes); err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *mongoInviteCodeRepository) IncrementUsedCount(ctx context.Context, id string) error {
	return r.update(ctx, id, bson.M{"$inc": bson.M{"usedCount": 1}})
}

func (r *mongoInviteCodeRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.update(ctx, id, bson.M{"$set": bson.M{"isActive": active}})
}

func (r *mongoInviteCodeRepository) Delete(ctx context.Context, id string) error {
	res, err := r.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoInviteCodeRepository) update(ctx context.Context, id string, change bson.M) error {
	res, err := r.c.UpdateByID(ctx, id, change)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoInviteCodeRepository) findOne(ctx context.Context, filter bson.M) (*model.InviteCode, error) {
	var code model.InviteCode
	if err := r.c.FindOne(ctx, filter).Decode(&code); err != nil {
		return nil, translateMongoErr(err)
	}
	return &code, nil
}

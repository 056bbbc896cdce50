package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kodomo/inventoryhub/internal/model"
)

type mongoGroupRepository struct {
	c *mongo.Collection
}

func (r *mongoGroupRepository) Create(ctx context.Context, group *model.Group) error {
	_, err := r.c.InsertOne(ctx, group)
	return translateMongoErr(err)
}

func (r *mongoGroupRepository) GetByID(ctx context.Context, id string) (*model.Group, error) {
	var group model.Group
	if err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&group); err != nil {
		return nil, translateMongoErr(err)
	}
	return &group, nil
}

// GetForUpdate is a plain read. Inside a transaction a concurrent write to the
// same document aborts one of the two with a retryable write conflict.
func (r *mongoGroupRepository) GetForUpdate(ctx context.Context, id string) (*model.Group, error) {
	return r.GetByID(ctx, id)
}

func (r *mongoGroupRepository) ListByIDs(ctx context.Context, ids []string) ([]model.Group, error) {
	groups := []model.Group{}
	if len(ids) == 0 {
		return groups, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := r.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *mongoGroupRepository) Update(ctx context.Context, group *model.Group) error {
	res, err := r.c.ReplaceOne(ctx, bson.M{"_id": group.ID}, group)
	if err != nil {
		return translateMongoErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

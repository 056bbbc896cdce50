package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kodomo/inventoryhub/internal/model"
)

type mongoItemRepository struct {
	c *mongo.Collection
}

func (r *mongoItemRepository) Create(ctx context.Context, item *model.InventoryItem) error {
	_, err := r.c.InsertOne(ctx, item)
	return translateMongoErr(err)
}

func (r *mongoItemRepository) GetByID(ctx context.Context, groupID, id string) (*model.InventoryItem, error) {
	var item model.InventoryItem
	if err := r.c.FindOne(ctx, bson.M{"_id": id, "groupId": groupID}).Decode(&item); err != nil {
		return nil, translateMongoErr(err)
	}
	return &item, nil
}

func (r *mongoItemRepository) ListByGroup(ctx context.Context, groupID string) ([]model.InventoryItem, error) {
	return r.find(ctx, bson.M{"groupId": groupID})
}

func (r *mongoItemRepository) Update(ctx context.Context, item *model.InventoryItem) error {
	res, err := r.c.ReplaceOne(ctx, bson.M{"_id": item.ID, "groupId": item.GroupID}, item)
	if err != nil {
		return translateMongoErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoItemRepository) Delete(ctx context.Context, groupID, id string) error {
	res, err := r.c.DeleteOne(ctx, bson.M{"_id": id, "groupId": groupID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoItemRepository) DeleteByCategory(ctx context.Context, groupID, categoryID string) ([]model.InventoryItem, error) {
	filter := bson.M{"groupId": groupID, "categoryId": categoryID}
	removed, err := r.find(ctx, filter)
	if err != nil || len(removed) == 0 {
		return nil, err
	}
	if _, err := r.c.DeleteMany(ctx, filter); err != nil {
		return nil, err
	}
	return removed, nil
}

func (r *mongoItemRepository) ReassignChild(ctx context.Context, groupID, childID string, now time.Time) (int64, error) {
	res, err := r.c.UpdateMany(ctx,
		bson.M{"groupId": groupID, "childId": childID},
		bson.M{
			"$set": bson.M{"childId": model.SharedChildID},
			"$max": bson.M{"updatedAt": now},
		},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *mongoItemRepository) find(ctx context.Context, filter bson.M) ([]model.InventoryItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := r.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	items := []model.InventoryItem{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

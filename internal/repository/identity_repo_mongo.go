package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kodomo/inventoryhub/internal/model"
)

type mongoLinkedAccountRepository struct {
	c *mongo.Collection
}

func (r *mongoLinkedAccountRepository) Create(ctx context.Context, account *model.LinkedAccount) error {
	_, err := r.c.InsertOne(ctx, account)
	return translateMongoErr(err)
}

func (r *mongoLinkedAccountRepository) GetByProviderSubject(
	ctx context.Context, provider, subject string,
) (*model.LinkedAccount, error) {
	var account model.LinkedAccount
	err := r.c.FindOne(ctx, bson.M{"provider": provider, "subject": subject}).Decode(&account)
	if err != nil {
		return nil, translateMongoErr(err)
	}
	return &account, nil
}

func (r *mongoLinkedAccountRepository) ListByUser(ctx context.Context, userID string) ([]model.LinkedAccount, error) {
	cur, err := r.c.Find(ctx, bson.M{"userId": userID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, translateMongoErr(err)
	}
	accounts := []model.LinkedAccount{}
	if err := cur.All(ctx, &accounts); err != nil {
		return nil, translateMongoErr(err)
	}
	return accounts, nil
}

func (r *mongoLinkedAccountRepository) Delete(ctx context.Context, id string) error {
	res, err := r.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translateMongoErr(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

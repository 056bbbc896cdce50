package repository

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Collection names mirror the Firestore layout of the mobile and web apps.
const (
	collUsers          = "users"
	collGroups         = "groups"
	collItems          = "items"
	collInviteCodes    = "inviteCodes"
	collLinkedAccounts = "linkedAccounts"
)

type mongoStore struct {
	db     *mongo.Database
	logger *zap.Logger
	// noTxn is set once the server has rejected a transaction (standalone mongod).
	noTxn *atomic.Bool
}

func NewMongoStore(db *mongo.Database, logger *zap.Logger) Store {
	return &mongoStore{db: db, logger: logger, noTxn: new(atomic.Bool)}
}

func (s *mongoStore) Users() UserRepository {
	return &mongoUserRepository{c: s.db.Collection(collUsers)}
}

func (s *mongoStore) Groups() GroupRepository {
	return &mongoGroupRepository{c: s.db.Collection(collGroups)}
}

func (s *mongoStore) Items() ItemRepository {
	return &mongoItemRepository{c: s.db.Collection(collItems)}
}

func (s *mongoStore) InviteCodes() InviteCodeRepository {
	return &mongoInviteCodeRepository{c: s.db.Collection(collInviteCodes)}
}

func (s *mongoStore) LinkedAccounts() LinkedAccountRepository {
	return &mongoLinkedAccountRepository{c: s.db.Collection(collLinkedAccounts)}
}

// WithTx runs fn in a session transaction. Servers without transaction support
// run fn directly; concurrent writers can then interleave between its steps.
func (s *mongoStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.noTxn.Load() {
		return fn(ctx, s)
	}

	sess, err := s.db.Client().StartSession()
	if err != nil {
		if !isTxnNotSupported(err) {
			return err
		}
		return s.withoutTxn(ctx, err, fn)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, s)
	})
	if err != nil && isTxnNotSupported(err) {
		return s.withoutTxn(ctx, err, fn)
	}
	return err
}

func (s *mongoStore) withoutTxn(ctx context.Context, cause error, fn func(ctx context.Context, tx Store) error) error {
	s.noTxn.Store(true)
	s.logger.Warn("mongo transactions not supported, multi-document writes are not atomic",
		zap.Error(cause))
	return fn(ctx, s)
}

// EnsureMongoIndexes creates the unique and lookup indexes the store relies on.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		collUsers: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("idx_users_email"),
			},
		},
		collItems: {
			{
				Keys:    bson.D{{Key: "groupId", Value: 1}, {Key: "categoryId", Value: 1}},
				Options: options.Index().SetName("idx_items_group_category"),
			},
		},
		collInviteCodes: {
			{
				Keys:    bson.D{{Key: "code", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("idx_invite_codes_code"),
			},
			{
				Keys:    bson.D{{Key: "groupId", Value: 1}},
				Options: options.Index().SetName("idx_invite_codes_group"),
			},
		},
		collLinkedAccounts: {
			{
				Keys:    bson.D{{Key: "provider", Value: 1}, {Key: "subject", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("idx_linked_accounts_provider_subject"),
			},
			{
				Keys:    bson.D{{Key: "userId", Value: 1}},
				Options: options.Index().SetName("idx_linked_accounts_user"),
			},
		},
	}
	for coll, indexes := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, indexes); err != nil {
			return err
		}
	}
	return nil
}

func translateMongoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	}
	return err
}

// isTxnNotSupported recognizes the errors a standalone server returns for
// sessions and transactions.
func isTxnNotSupported(err error) bool {
	if err == nil {
		return false
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch cmdErr.Code {
		case 20, 51, 263: // IllegalOperation, IllegalOperation (legacy), OperationNotSupportedInTransaction
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "transaction") {
		for _, kw := range []string{"replica set", "session", "illegal operation", "not supported"} {
			if strings.Contains(msg, kw) {
				return true
			}
		}
	}
	return strings.Contains(msg, "session") && strings.Contains(msg, "not supported")
}

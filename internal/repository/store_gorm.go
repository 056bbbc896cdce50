package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormStore struct {
	db       *gorm.DB
	lockRows bool
	inTx     bool
}

// NewGormStore builds the SQL store. The db should be opened with TranslateError
// so unique violations surface as ErrDuplicate.
func NewGormStore(db *gorm.DB, lockRows bool) Store {
	return &gormStore{db: db, lockRows: lockRows}
}

func (s *gormStore) Users() UserRepository {
	return &gormUserRepository{db: s.db}
}

func (s *gormStore) Groups() GroupRepository {
	return &gormGroupRepository{db: s.db, lock: s.inTx && s.lockRows && supportsRowLocks(s.db)}
}

func (s *gormStore) Items() ItemRepository {
	return &gormItemRepository{db: s.db}
}

func (s *gormStore) InviteCodes() InviteCodeRepository {
	return &gormInviteCodeRepository{db: s.db}
}

func (s *gormStore) LinkedAccounts() LinkedAccountRepository {
	return &gormLinkedAccountRepository{db: s.db}
}

func (s *gormStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &gormStore{db: tx, lockRows: s.lockRows, inTx: true})
	})
}

// SQLite serializes writers and has no FOR UPDATE.
func supportsRowLocks(db *gorm.DB) bool {
	return db.Dialector.Name() != "sqlite"
}

func forUpdate(db *gorm.DB, lock bool) *gorm.DB {
	if !lock {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func translateGormErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

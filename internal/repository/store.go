package repository

import (
	"context"
	"time"

	"kodomo/inventoryhub/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	// AddGroup appends groupID to the user's group ids unless already present.
	AddGroup(ctx context.Context, userID, groupID string) error
	RemoveGroup(ctx context.Context, userID, groupID string) error
}

type GroupRepository interface {
	Create(ctx context.Context, group *model.Group) error
	GetByID(ctx context.Context, id string) (*model.Group, error)
	// GetForUpdate reads the group for a read-modify-write. Inside a transaction
	// SQL backends lock the row when row locking is enabled.
	GetForUpdate(ctx context.Context, id string) (*model.Group, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Group, error)
	// Update overwrites the whole group document.
	Update(ctx context.Context, group *model.Group) error
}

type ItemRepository interface {
	Create(ctx context.Context, item *model.InventoryItem) error
	GetByID(ctx context.Context, groupID, id string) (*model.InventoryItem, error)
	ListByGroup(ctx context.Context, groupID string) ([]model.InventoryItem, error)
	Update(ctx context.Context, item *model.InventoryItem) error
	Delete(ctx context.Context, groupID, id string) error
	// DeleteByCategory removes every item of the category and returns what was removed.
	DeleteByCategory(ctx context.Context, groupID, categoryID string) ([]model.InventoryItem, error)
	// ReassignChild moves the child's items to the shared pool and reports how many moved.
	ReassignChild(ctx context.Context, groupID, childID string, now time.Time) (int64, error)
}

type InviteCodeRepository interface {
	Create(ctx context.Context, code *model.InviteCode) error
	GetByID(ctx context.Context, id string) (*model.InviteCode, error)
	GetByCode(ctx context.Context, code string) (*model.InviteCode, error)
	ListByGroup(ctx context.Context, groupID string) ([]model.InviteCode, error)
	IncrementUsedCount(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

type LinkedAccountRepository interface {
	Create(ctx context.Context, account *model.LinkedAccount) error
	GetByProviderSubject(ctx context.Context, provider, subject string) (*model.LinkedAccount, error)
	ListByUser(ctx context.Context, userID string) ([]model.LinkedAccount, error)
	Delete(ctx context.Context, id string) error
}

// Store groups the cloud repositories into a unit of work.
type Store interface {
	Users() UserRepository
	Groups() GroupRepository
	Items() ItemRepository
	InviteCodes() InviteCodeRepository
	LinkedAccounts() LinkedAccountRepository
	// WithTx runs fn against repositories bound to one transaction. fn must only
	// use the Store it is handed.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

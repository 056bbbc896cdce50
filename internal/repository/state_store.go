package repository

import (
	"context"
	"time"
)

// StateStore abstracts small key-value state: the offline snapshot blob and
// refresh-token revocation entries.
// Implementations: in-memory, Redis, a file directory, and SQLite.
//
// Get returns (nil, nil) for a missing or expired key. A ttl of zero never expires.
type StateStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

func newSQLiteStateStore(t *testing.T) StateStore {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLiteStateStore(context.Background(), db)
	if err != nil {
		t.Fatalf("NewSQLiteStateStore: %v", err)
	}
	return store
}

func TestStateStores(t *testing.T) {
	stores := map[string]func(t *testing.T) StateStore{
		"memory": func(*testing.T) StateStore { return NewMemoryStateStore() },
		"file": func(t *testing.T) StateStore {
			s, err := NewFileStateStore(t.TempDir())
			if err != nil {
				t.Fatalf("NewFileStateStore: %v", err)
			}
			return s
		},
		"sqlite": newSQLiteStateStore,
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			if v, err := s.Get(ctx, "missing"); err != nil || v != nil {
				t.Fatalf("Get(missing) = %q, %v; want nil, nil", v, err)
			}
			if err := s.Set(ctx, "refresh:abc", []byte("v1"), 0); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := s.Set(ctx, "refresh:abc", []byte("v2"), time.Hour); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			v, err := s.Get(ctx, "refresh:abc")
			if err != nil || string(v) != "v2" {
				t.Fatalf("Get = %q, %v; want v2", v, err)
			}
			if ok, _ := s.Exists(ctx, "refresh:abc"); !ok {
				t.Fatal("Exists = false after Set")
			}
			if err := s.Delete(ctx, "refresh:abc"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if ok, _ := s.Exists(ctx, "refresh:abc"); ok {
				t.Fatal("Exists = true after Delete")
			}
			if err := s.Delete(ctx, "refresh:abc"); err != nil {
				t.Fatalf("Delete missing: %v", err)
			}
		})
	}
}

func TestMemoryStateStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s := newMemoryStateStore(func() time.Time { return now })

	_ = s.Set(ctx, "k", []byte("v"), time.Minute)
	now = now.Add(59 * time.Second)
	if ok, _ := s.Exists(ctx, "k"); !ok {
		t.Fatal("expired too early")
	}
	now = now.Add(time.Second)
	if v, _ := s.Get(ctx, "k"); v != nil {
		t.Fatalf("Get after expiry = %q", v)
	}
}

func TestFileStateStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStateStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fs := s.(*fileStateStore)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	fs.now = func() time.Time { return now }

	_ = fs.Set(ctx, "k", []byte("v"), time.Minute)
	now = now.Add(2 * time.Minute)
	if ok, _ := fs.Exists(ctx, "k"); ok {
		t.Fatal("key should have expired")
	}
	// Setting without TTL clears a stale deadline.
	_ = fs.Set(ctx, "k", []byte("v"), time.Minute)
	_ = fs.Set(ctx, "k", []byte("w"), 0)
	now = now.Add(time.Hour)
	if v, _ := fs.Get(ctx, "k"); string(v) != "w" {
		t.Fatalf("Get = %q, want w", v)
	}
}

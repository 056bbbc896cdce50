package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"kodomo/inventoryhub/internal/imaging"
	"kodomo/inventoryhub/internal/model"
	"kodomo/inventoryhub/internal/repository"
	"kodomo/inventoryhub/internal/testutil"
)

var testStart = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) repository.Store {
	t.Helper()
	return repository.NewGormStore(testutil.SetupTestDB(t), true)
}

func seedUser(t *testing.T, ctx context.Context, store repository.Store, name string) *model.User {
	t.Helper()
	u := &model.User{
		ID:           uuid.NewString(),
		Email:        uuid.NewString()[:8] + "@example.com",
		DisplayName:  name,
		PasswordHash: "x",
		GroupIDs:     model.StringSlice{},
		Status:       model.UserStatusActive,
		CreatedAt:    testStart,
		UpdatedAt:    testStart,
	}
	if err := store.Users().Create(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// waitSignal fails the test unless sub fires within a second.
func waitSignal(t *testing.T, sub repository.Subscription) {
	t.Helper()
	select {
	case <-sub.C():
	case <-time.After(time.Second):
		t.Fatal("no change signal")
	}
}

var defaultTestImageOptions = imaging.Options{MaxDimension: 64}

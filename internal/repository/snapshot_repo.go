package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"kodomo/inventoryhub/internal/model"
)

// SnapshotKey is the fixed key the offline dataset lives under.
const SnapshotKey = "family_inventory_v1"

var ErrNoSnapshot = errors.New("no stored snapshot")

type SnapshotRepository interface {
	// Load returns ErrNoSnapshot when nothing usable is stored; callers fall back to defaults.
	Load(ctx context.Context) (*model.Snapshot, error)
	Save(ctx context.Context, snapshot *model.Snapshot) error
}

type snapshotRepository struct {
	store  StateStore
	logger *zap.Logger
}

func NewSnapshotRepository(store StateStore, logger *zap.Logger) SnapshotRepository {
	return &snapshotRepository{store: store, logger: logger}
}

func (r *snapshotRepository) Load(ctx context.Context) (*model.Snapshot, error) {
	raw, err := r.store.Get(ctx, SnapshotKey)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrNoSnapshot
	}

	// A blob such as null or {} decodes cleanly but is not a dataset.
	snap, err := ImportSnapshot(raw)
	if err != nil {
		r.logger.Warn("stored snapshot is malformed, ignoring", zap.Error(err), zap.Int("bytes", len(raw)))
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

func (r *snapshotRepository) Save(ctx context.Context, snapshot *model.Snapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := r.store.Set(ctx, SnapshotKey, raw, 0); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func normalizeSnapshot(s *model.Snapshot) {
	if s.Children == nil {
		s.Children = []model.Child{}
	}
	if s.Categories == nil {
		s.Categories = []model.Category{}
	}
	if s.Items == nil {
		s.Items = []model.InventoryItem{}
	}
}

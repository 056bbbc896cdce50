package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kodomo/inventoryhub/internal/inventory"
	"kodomo/inventoryhub/internal/model"
	"kodomo/inventoryhub/internal/repository"
)

// LocalImages is the managed image directory of the offline household.
type LocalImages interface {
	Import(ctx context.Context, srcPath string) (string, error)
	Save(ctx context.Context, scope string, body io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}

// LocalInventory is the single-household offline dataset. Every mutation
// rewrites the whole snapshot. When that save fails the in-memory change is
// kept and the failure is only logged; the next successful save catches up.
type LocalInventory interface {
	Load(ctx context.Context) error
	Snapshot() model.Snapshot

	UpdateFamilyName(ctx context.Context, name string) error

	AddChild(ctx context.Context, in ChildInput) (*model.Child, error)
	UpdateChild(ctx context.Context, id string, patch inventory.ChildPatch) error
	DeleteChild(ctx context.Context, id string) error

	AddCategory(ctx context.Context, in CategoryInput) (*model.Category, error)
	UpdateCategory(ctx context.Context, id string, patch inventory.CategoryPatch) error
	DeleteCategory(ctx context.Context, id string) error
	ReorderCategories(ctx context.Context, orderedIDs []string) error

	AddItem(ctx context.Context, in ItemInput, image *ImageUpload) (*model.InventoryItem, error)
	UpdateItem(ctx context.Context, id string, patch inventory.ItemPatch, image *ImageUpload) (*model.InventoryItem, error)
	DeleteItem(ctx context.Context, id string) error

	ReplaceAll(ctx context.Context, snapshot model.Snapshot) error
	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, data []byte) error

	FilteredItems(f inventory.Filter) []model.InventoryItem
	CategorySummaries(f inventory.Filter) []inventory.CategorySummary
	AvailableSizes(childID, categoryID string) []string
	AvailableBrands(childID, categoryID string) []string
}

type localInventory struct {
	repo   repository.SnapshotRepository
	images LocalImages
	logger *zap.Logger
	now    func() time.Time

	mu   sync.RWMutex
	snap model.Snapshot
}

func NewLocalInventory(repo repository.SnapshotRepository, images LocalImages, logger *zap.Logger) LocalInventory {
	return &localInventory{
		repo:   repo,
		images: images,
		logger: logger,
		now:    time.Now,
		snap:   model.DefaultSnapshot(),
	}
}

// localChange is one mutation in progress. discard lists images to delete
// once the change is in place.
type localChange struct {
	snap    *model.Snapshot
	discard []string
}

func (s *localInventory) Load(ctx context.Context) error {
	snap, err := s.repo.Load(ctx)
	fresh := errors.Is(err, repository.ErrNoSnapshot)
	if err != nil && !fresh {
		return err
	}
	if fresh {
		def := model.DefaultSnapshot()
		snap = &def
		s.logger.Info("no stored inventory, starting from defaults")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = *snap
	if fresh {
		// Persist the defaults so their generated ids survive a restart.
		s.persist(ctx)
	}
	return nil
}

func (s *localInventory) Snapshot() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

func (s *localInventory) mutate(ctx context.Context, fn func(c *localChange) error) error {
	s.mu.Lock()
	next := s.snap.Clone()
	change := &localChange{snap: &next}
	if err := fn(change); err != nil {
		s.mu.Unlock()
		return err
	}
	s.snap = next
	s.persist(ctx)
	s.mu.Unlock()

	for _, ref := range change.discard {
		s.discardImage(ctx, ref)
	}
	return nil
}

// persist must be called with mu held.
func (s *localInventory) persist(ctx context.Context) {
	if err := s.repo.Save(ctx, &s.snap); err != nil {
		s.logger.Error("failed to persist inventory snapshot", zap.Error(err))
	}
}

func (s *localInventory) discardImage(ctx context.Context, ref string) {
	if err := s.images.Delete(ctx, ref); err != nil {
		s.logger.Warn("failed to delete image", zap.String("ref", ref), zap.Error(err))
	}
}

func (s *localInventory) UpdateFamilyName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return inventory.ErrNameRequired
	}
	return s.mutate(ctx, func(c *localChange) error {
		c.snap.FamilyName = name
		return nil
	})
}

func (s *localInventory) AddChild(ctx context.Context, in ChildInput) (*model.Child, error) {
	child := model.Child{ID: uuid.NewString(), Name: strings.TrimSpace(in.Name), Color: in.Color, Emoji: in.Emoji}
	if err := inventory.ValidateChild(child); err != nil {
		return nil, err
	}
	err := s.mutate(ctx, func(c *localChange) error {
		c.snap.Children = inventory.AppendChild(c.snap.Children, child)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &child, nil
}

func (s *localInventory) UpdateChild(ctx context.Context, id string, patch inventory.ChildPatch) error {
	return s.mutate(ctx, func(c *localChange) error {
		children, found := inventory.PatchChild(c.snap.Children, id, patch)
		if !found {
			return nil
		}
		for _, ch := range children {
			if ch.ID == id {
				if err := inventory.ValidateChild(ch); err != nil {
					return err
				}
			}
		}
		c.snap.Children = children
		return nil
	})
}

func (s *localInventory) DeleteChild(ctx context.Context, id string) error {
	return s.mutate(ctx, func(c *localChange) error {
		c.snap.Items, _ = inventory.ReassignChild(c.snap.Items, id, s.now())
		c.snap.Children = inventory.RemoveChild(c.snap.Children, id)
		return nil
	})
}

func (s *localInventory) AddCategory(ctx context.Context, in CategoryInput) (*model.Category, error) {
	category := model.Category{ID: uuid.NewString(), Name: strings.TrimSpace(in.Name), Emoji: in.Emoji}
	if err := inventory.ValidateCategory(category); err != nil {
		return nil, err
	}
	err := s.mutate(ctx, func(c *localChange) error {
		c.snap.Categories = inventory.AppendCategory(c.snap.Categories, category)
		category = c.snap.Categories[len(c.snap.Categories)-1]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *localInventory) UpdateCategory(ctx context.Context, id string, patch inventory.CategoryPatch) error {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return inventory.ErrNameRequired
	}
	return s.mutate(ctx, func(c *localChange) error {
		c.snap.Categories, _ = inventory.PatchCategory(c.snap.Categories, id, patch)
		return nil
	})
}

func (s *localInventory) DeleteCategory(ctx context.Context, id string) error {
	return s.mutate(ctx, func(c *localChange) error {
		kept, removed := inventory.SplitByCategory(c.snap.Items, id)
		c.snap.Items = kept
		c.snap.Categories = inventory.RemoveCategory(c.snap.Categories, id)
		for _, item := range removed {
			if item.ImageURL != nil {
				c.discard = append(c.discard, *item.ImageURL)
			}
		}
		return nil
	})
}

func (s *localInventory) ReorderCategories(ctx context.Context, orderedIDs []string) error {
	return s.mutate(ctx, func(c *localChange) error {
		reordered, err := inventory.ReorderCategories(c.snap.Categories, orderedIDs)
		if err != nil {
			return err
		}
		c.snap.Categories = reordered
		return nil
	})
}

func (s *localInventory) AddItem(ctx context.Context, in ItemInput, image *ImageUpload) (*model.InventoryItem, error) {
	now := s.now().UTC()
	item := inventory.NormalizeItem(model.InventoryItem{
		ID:         uuid.NewString(),
		Name:       in.Name,
		CategoryID: in.CategoryID,
		ChildID:    childOrShared(in.ChildID),
		Size:       in.Size,
		Brand:      in.Brand,
		Quantity:   quantityOrDefault(in.Quantity),
		Notes:      in.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	})

	err := s.mutate(ctx, func(c *localChange) error {
		if err := inventory.ValidateItem(item, c.snap.Categories, c.snap.Children); err != nil {
			return err
		}
		if image != nil {
			ref, err := s.storeImage(ctx, image)
			if err != nil {
				return err
			}
			item.ImageURL = &ref
		}
		c.snap.Items = append(c.snap.Items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *localInventory) UpdateItem(ctx context.Context, id string, patch inventory.ItemPatch, image *ImageUpload) (*model.InventoryItem, error) {
	var updated model.InventoryItem
	err := s.mutate(ctx, func(c *localChange) error {
		idx := indexOfItem(c.snap.Items, id)
		if idx < 0 {
			return ErrItemNotFound
		}
		next := inventory.ApplyItemPatch(c.snap.Items[idx], patch, s.now().UTC())
		if err := inventory.ValidateItem(next, c.snap.Categories, c.snap.Children); err != nil {
			return err
		}
		if image != nil {
			ref, err := s.storeImage(ctx, image)
			if err != nil {
				return err
			}
			if old := next.ImageURL; old != nil && *old != ref {
				c.discard = append(c.discard, *old)
			}
			next.ImageURL = &ref
		}
		c.snap.Items[idx] = next
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *localInventory) DeleteItem(ctx context.Context, id string) error {
	return s.mutate(ctx, func(c *localChange) error {
		idx := indexOfItem(c.snap.Items, id)
		if idx < 0 {
			return ErrItemNotFound
		}
		if ref := c.snap.Items[idx].ImageURL; ref != nil {
			c.discard = append(c.discard, *ref)
		}
		c.snap.Items = append(c.snap.Items[:idx], c.snap.Items[idx+1:]...)
		return nil
	})
}

func (s *localInventory) ReplaceAll(ctx context.Context, snapshot model.Snapshot) error {
	return s.mutate(ctx, func(c *localChange) error {
		*c.snap = snapshot.Clone()
		return nil
	})
}

func (s *localInventory) Export(_ context.Context) ([]byte, error) {
	return repository.ExportSnapshot(s.Snapshot(), s.now())
}

func (s *localInventory) Import(ctx context.Context, data []byte) error {
	snap, err := repository.ImportSnapshot(data)
	if err != nil {
		return err
	}
	return s.ReplaceAll(ctx, *snap)
}

func (s *localInventory) FilteredItems(f inventory.Filter) []model.InventoryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return inventory.FilterItems(s.snap.Items, f)
}

func (s *localInventory) CategorySummaries(f inventory.Filter) []inventory.CategorySummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return inventory.SummarizeCategories(s.snap.Categories, s.snap.Items, f)
}

func (s *localInventory) AvailableSizes(childID, categoryID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return inventory.AvailableSizes(s.snap.Items, childID, categoryID)
}

func (s *localInventory) AvailableBrands(childID, categoryID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return inventory.AvailableBrands(s.snap.Items, childID, categoryID)
}

// storeImage copies a picked image into the managed directory. Only the durable reference is kept.
func (s *localInventory) storeImage(ctx context.Context, image *ImageUpload) (string, error) {
	var (
		ref string
		err error
	)
	if image.Path != "" {
		ref, err = s.images.Import(ctx, image.Path)
	} else {
		ref, err = s.images.Save(ctx, "", image.Body)
	}
	if errors.Is(err, repository.ErrUnsupportedImage) {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return ref, nil
}

func indexOfItem(items []model.InventoryItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func quantityOrDefault(q *int) int {
	if q == nil {
		return 1
	}
	return *q
}

var _ LocalInventory = (*localInventory)(nil)

package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kodomo/inventoryhub/internal/imaging"
	"kodomo/inventoryhub/internal/inventory"
	"kodomo/inventoryhub/internal/model"
	"kodomo/inventoryhub/internal/repository"
)

// InventoryView is the home screen of one group: the filtered list together
// with the per-category totals and the filter facets.
type InventoryView struct {
	Items     []model.InventoryItem       `json:"items"`
	Summaries []inventory.CategorySummary `json:"summaries"`
	Sizes     []string                    `json:"sizes"`
	Brands    []string                    `json:"brands"`
}

type ItemService interface {
	ListItems(ctx context.Context, userID, groupID string) ([]model.InventoryItem, error)
	GetItem(ctx context.Context, userID, groupID, itemID string) (*model.InventoryItem, error)
	AddItem(ctx context.Context, userID, groupID string, in ItemInput, image *ImageUpload) (*model.InventoryItem, error)
	UpdateItem(ctx context.Context, userID, groupID, itemID string, patch inventory.ItemPatch, image *ImageUpload) (*model.InventoryItem, error)
	DeleteItem(ctx context.Context, userID, groupID, itemID string) error
	Query(ctx context.Context, userID, groupID string, f inventory.Filter) (*InventoryView, error)
}

type itemService struct {
	w        *groupWriter
	images   repository.ImageStore
	imageOpt imaging.Options
	logger   *zap.Logger
}

func NewItemService(
	store repository.Store,
	notifier repository.Notifier,
	images repository.ImageStore,
	imageOpt imaging.Options,
	logger *zap.Logger,
) ItemService {
	return &itemService{
		w: &groupWriter{
			store:    store,
			notifier: notifier,
			logger:   logger,
			now:      time.Now,
		},
		images:   images,
		imageOpt: imageOpt,
		logger:   logger,
	}
}

func (s *itemService) ListItems(ctx context.Context, userID, groupID string) ([]model.InventoryItem, error) {
	if _, _, err := memberGroup(ctx, s.w.store, userID, groupID); err != nil {
		return nil, err
	}
	return s.w.store.Items().ListByGroup(ctx, groupID)
}

func (s *itemService) GetItem(ctx context.Context, userID, groupID, itemID string) (*model.InventoryItem, error) {
	if _, _, err := memberGroup(ctx, s.w.store, userID, groupID); err != nil {
		return nil, err
	}
	item, err := s.w.store.Items().GetByID(ctx, groupID, itemID)
	if err != nil {
		return nil, mapItemErr(err)
	}
	return item, nil
}

func (s *itemService) AddItem(ctx context.Context, userID, groupID string, in ItemInput, image *ImageUpload) (*model.InventoryItem, error) {
	g, _, err := memberGroup(ctx, s.w.store, userID, groupID)
	if err != nil {
		return nil, err
	}

	now := s.w.now().UTC()
	item := inventory.NormalizeItem(model.InventoryItem{
		ID:         uuid.NewString(),
		GroupID:    groupID,
		Name:       in.Name,
		CategoryID: in.CategoryID,
		ChildID:    childOrShared(in.ChildID),
		Size:       in.Size,
		Brand:      in.Brand,
		Quantity:   quantityOrDefault(in.Quantity),
		Notes:      in.Notes,
		CreatedBy:  userID,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err := inventory.ValidateItem(item, g.Categories, g.Children); err != nil {
		return nil, err
	}

	if image != nil {
		ref, err := s.uploadImage(ctx, groupID, image)
		if err != nil {
			return nil, err
		}
		item.ImageURL = &ref
	}

	if err := s.w.store.Items().Create(ctx, &item); err != nil {
		if item.ImageURL != nil {
			deleteImage(ctx, s.images, s.logger, *item.ImageURL)
		}
		return nil, err
	}
	s.w.publish(ctx, repository.GroupItemsTopic(groupID))
	return &item, nil
}

// UpdateItem uploads a replacement photo before the record write and deletes
// the previous one only after the write succeeded.
func (s *itemService) UpdateItem(
	ctx context.Context, userID, groupID, itemID string, patch inventory.ItemPatch, image *ImageUpload,
) (*model.InventoryItem, error) {
	g, _, err := memberGroup(ctx, s.w.store, userID, groupID)
	if err != nil {
		return nil, err
	}
	current, err := s.w.store.Items().GetByID(ctx, groupID, itemID)
	if err != nil {
		return nil, mapItemErr(err)
	}

	next := inventory.ApplyItemPatch(*current, patch, s.w.now().UTC())
	if err := inventory.ValidateItem(next, g.Categories, g.Children); err != nil {
		return nil, err
	}

	var uploaded string
	if image != nil {
		uploaded, err = s.uploadImage(ctx, groupID, image)
		if err != nil {
			return nil, err
		}
		next.ImageURL = &uploaded
	}

	if err := s.w.store.Items().Update(ctx, &next); err != nil {
		if uploaded != "" {
			deleteImage(ctx, s.images, s.logger, uploaded)
		}
		return nil, mapItemErr(err)
	}
	if uploaded != "" && current.ImageURL != nil && *current.ImageURL != uploaded {
		deleteImage(ctx, s.images, s.logger, *current.ImageURL)
	}
	s.w.publish(ctx, repository.GroupItemsTopic(groupID))
	return &next, nil
}

func (s *itemService) DeleteItem(ctx context.Context, userID, groupID, itemID string) error {
	if _, _, err := memberGroup(ctx, s.w.store, userID, groupID); err != nil {
		return err
	}
	item, err := s.w.store.Items().GetByID(ctx, groupID, itemID)
	if err != nil {
		return mapItemErr(err)
	}
	if err := s.w.store.Items().Delete(ctx, groupID, itemID); err != nil {
		return mapItemErr(err)
	}
	s.w.publish(ctx, repository.GroupItemsTopic(groupID))
	if item.ImageURL != nil {
		deleteImage(ctx, s.images, s.logger, *item.ImageURL)
	}
	return nil
}

func (s *itemService) Query(ctx context.Context, userID, groupID string, f inventory.Filter) (*InventoryView, error) {
	g, _, err := memberGroup(ctx, s.w.store, userID, groupID)
	if err != nil {
		return nil, err
	}
	items, err := s.w.store.Items().ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return &InventoryView{
		Items:     inventory.FilterItems(items, f),
		Summaries: inventory.SummarizeCategories(g.Categories, items, f),
		Sizes:     inventory.AvailableSizes(items, f.ChildID, f.CategoryID),
		Brands:    inventory.AvailableBrands(items, f.ChildID, f.CategoryID),
	}, nil
}

// uploadImage shrinks the photo and stores it as JPEG.
func (s *itemService) uploadImage(ctx context.Context, groupID string, image *ImageUpload) (string, error) {
	body, closeFn, err := openUpload(image)
	if err != nil {
		return "", err
	}
	defer closeFn()

	data, err := imaging.Fit(body, s.imageOpt)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupportedImage) {
			return "", ErrInvalidImage
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	ref, err := s.images.Save(ctx, repository.ItemImageScope(groupID), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return ref, nil
}

func openUpload(image *ImageUpload) (io.Reader, func(), error) {
	if image.Body != nil {
		return image.Body, func() {}, nil
	}
	f, err := os.Open(image.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open image: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func mapItemErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrItemNotFound
	}
	return err
}

var _ ItemService = (*itemService)(nil)

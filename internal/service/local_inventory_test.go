package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"kodomo/inventoryhub/internal/inventory"
	"kodomo/inventoryhub/internal/model"
	"kodomo/inventoryhub/internal/repository"
	"kodomo/inventoryhub/internal/testutil"
)

type failingSnapshotRepo struct {
	saves int
}

func (r *failingSnapshotRepo) Load(context.Context) (*model.Snapshot, error) {
	return nil, repository.ErrNoSnapshot
}

func (r *failingSnapshotRepo) Save(context.Context, *model.Snapshot) error {
	r.saves++
	return errors.New("disk full")
}

func newTestLocalInventory(t *testing.T) (*localInventory, repository.SnapshotRepository, *repository.LocalImageStore) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	images, err := repository.NewLocalImageStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewLocalImageStore() error = %v", err)
	}
	repo := repository.NewSnapshotRepository(repository.NewMemoryStateStore(), logger)
	inv := NewLocalInventory(repo, images, logger).(*localInventory)
	inv.now = testutil.NewClock(time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)).Now
	if err := inv.Load(testutil.TestContext(t)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return inv, repo, images
}

func categoryByName(t *testing.T, snap model.Snapshot, name string) model.Category {
	t.Helper()
	for _, c := range snap.Categories {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("category %q not found", name)
	return model.Category{}
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestLocalInventory_LoadPersistsDefaults(t *testing.T) {
	inv, repo, _ := newTestLocalInventory(t)
	ctx := testutil.TestContext(t)

	stored, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("repo.Load() error = %v", err)
	}
	snap := inv.Snapshot()
	if stored.FamilyName != "わが家" || len(stored.Categories) != 8 || len(stored.Children) != 2 {
		t.Fatalf("stored defaults = %+v", stored)
	}
	if stored.Categories[0].ID != snap.Categories[0].ID {
		t.Errorf("stored category id %q, in memory %q", stored.Categories[0].ID, snap.Categories[0].ID)
	}
}

func TestLocalInventory_AddItemSummaries(t *testing.T) {
	inv, _, _ := newTestLocalInventory(t)
	ctx := testutil.TestContext(t)
	tops := categoryByName(t, inv.Snapshot(), "トップス")

	item, err := inv.AddItem(ctx, ItemInput{Name: "Tシャツ", CategoryID: tops.ID, Quantity: intPtr(2)}, nil)
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	if item.ChildID != model.SharedChildID {
		t.Errorf("ChildID = %q, want %q", item.ChildID, model.SharedChildID)
	}

	found := 0
	for _, it := range inv.FilteredItems(inventory.Filter{}) {
		if it.ID == item.ID {
			found++
		}
	}
	if found != 1 {
		t.Errorf("new item listed %d times, want 1", found)
	}

	summaries := inv.CategorySummaries(inventory.Filter{})
	if len(summaries) != 8 {
		t.Fatalf("len(summaries) = %d, want 8", len(summaries))
	}
	for _, s := range summaries {
		if s.Category.ID == tops.ID {
			if s.ItemCount != 1 || s.TotalQuantity != 2 {
				t.Errorf("トップス summary = %+v, want 1 item / quantity 2", s)
			}
			continue
		}
		if s.ItemCount != 0 {
			t.Errorf("%s ItemCount = %d, want 0", s.Category.Name, s.ItemCount)
		}
	}
}

func TestLocalInventory_AddItemValidation(t *testing.T) {
	inv, _, _ := newTestLocalInventory(t)
	ctx := testutil.TestContext(t)
	tops := categoryByName(t, inv.Snapshot(), "トップス")

	tests := []struct {
		name string
		in   ItemInput
		want error
	}{
		{"blank name", ItemInput{Name: "  ", CategoryID: tops.ID}, inventory.ErrNameRequired},
		{"no category", ItemInput{Name: "靴下"}, inventory.ErrCategoryRequired},
		{"unknown category", ItemInput{Name: "靴下", CategoryID: "missing"}, inventory.ErrUnknownCategory},
		{"unknown child", ItemInput{Name: "靴下", CategoryID: tops.ID, ChildID: "ghost"}, inventory.ErrUnknownChild},
		{"zero quantity", ItemInput{Name: "靴下", CategoryID: tops.ID, Quantity: intPtr(0)}, inventory.ErrInvalidQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := inv.AddItem(ctx, tt.in, nil); !errors.Is(err, tt.want) {
				t.Errorf("AddItem() error = %v, want %v", err, tt.want)
			}
		})
	}
	if n := len(inv.Snapshot().Items); n != 0 {
		t.Errorf("items after rejected adds = %d, want 0", n)
	}
}

func TestLocalInventory_UpdateItemTouchesUpdatedAt(t *testing.T) {
	inv, _, _ := newTestLocalInventory(t)
	ctx := testutil.TestContext(t)
	clock := testutil.NewClock(time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC))
	inv.now = clock.Now
	tops := categoryByName(t, inv.Snapshot(), "トップス")

	item, err := inv.AddItem(ctx, ItemInput{Name: "Tシャツ", CategoryID: tops.ID}, nil)
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	clock.Advance(time.Minute)
	updated, err := inv.UpdateItem(ctx, item.ID, inventory.ItemPatch{Size: strPtr(" 90cm ")}, nil)
	if err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	if updated.Size != "90cm" {
		t.Errorf("Size = %q, want 90cm", updated.Size)
	}
	if updated.UpdatedAt.Before(item.UpdatedAt) {
		t.Errorf("UpdatedAt went backwards: %v < %v", updated.UpdatedAt, item.UpdatedAt)
	}

	if _, err := inv.UpdateItem(ctx, "missing", inventory.ItemPatch{}, nil); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("UpdateItem(missing) error = %v, want ErrItemNotFound", err)
	}
}

func TestLocalInventory_AvailableSizes(t *testing.T) {
	inv, _, _ := newTestLocalInventory(t)
	ctx := testutil.TestContext(t)
	tops := categoryByName(t, inv.Snapshot(), "トップス")

	for _, size := range []string{"90cm", "90cm", ""} {
		if _, err := inv.AddItem(ctx, ItemInput{Name: "Tシャツ", CategoryID: tops.ID, Size: size}, nil); err != nil {
			t.Fatalf("AddItem() error = %v", err)
		}
	}
	got := inv.AvailableSizes("", "")
	if len(got) != 1 || got[0] != "90cm" {
		t.Errorf("AvailableSizes() = %v, want [90cm]", got)
	}
}

func TestLocalInventory_ReorderCategories(t *testing.T) {
	inv, _, _ := newTestLocalInventory(t)
	ctx := testutil.TestContext(t)
	err := inv.ReplaceAll(ctx, model.Snapshot{
		Version:    model.SnapshotVersion,
		FamilyName: "テスト",
		Categories: []model.Category{
			{ID: "c1", Name: "one", Order: 0},
			{ID: "c2", Name: "two", Order: 1},
			{ID: "c3", Name: "three", Order: 2},
		},
	})
	if err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}

	if err := inv.ReorderCategories(ctx, []string{"c3", "c1", "c2"}); err != nil {
		t.Fatalf("ReorderCategories() error = %v", err)
	}
	want := map[string]int{"c3": 0, "c1": 1, "c2": 2}
	for _, c := range inv.Snapshot().Categories {
		if c.Order != want[c.ID] {
			t.Errorf("%s.Order = %d, want %d", c.ID, c.Order, want[c.ID])
		}
	}

	if err := inv.ReorderCategories(ctx, []string{"c1", "c2"}); !errors.Is(err, inventory.ErrInvalidOrder) {
		t.Errorf("ReorderCategories(partial) error = %v, want ErrInvalidOrder", err)
	}
}

func TestLocalInventory_DeleteChildReassignsItems(t *testing.T) {
	inv, _, _ := newTestLocalInventory(t)
	ctx := testutil.TestContext(t)
	snap := inv.Snapshot()
	tops := categoryByName(t, snap, "トップス")
	taro := snap.Children[0]

	item, err := inv.AddItem(ctx, ItemInput{Name: "Tシャツ", CategoryID: tops.ID, ChildID: taro.ID}, nil)
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	if err := inv.DeleteChild(ctx, taro.ID); err != nil {
		t.Fatalf("DeleteChild() error = %v", err)
	}

	snap = inv.Snapshot()
	if len(snap.Children) != 1 {
		t.Errorf("len(Children) = %d, want 1", len(snap.Children))
	}
	if len(snap.Items) != 1 || snap.Items[0].ID != item.ID || snap.Items[0].ChildID != model.SharedChildID {
		t.Errorf("items after DeleteChild = %+v", snap.Items)
	}
}

func TestLocalInventory_UpdateMissingIsNoop(t *testing.T) {
	inv, _, _ := newTestLocalInventory(t)
	ctx := testutil.TestContext(t)
	before := inv.Snapshot()

	if err := inv.UpdateChild(ctx, "missing", inventory.ChildPatch{Name: strPtr("x")}); err != nil {
		t.Errorf("UpdateChild(missing) error = %v", err)
	}
	if err := inv.UpdateCategory(ctx, "missing", inventory.CategoryPatch{Name: strPtr("x")}); err != nil {
		t.Errorf("UpdateCategory(missing) error = %v", err)
	}
	if err := inv.UpdateChild(ctx, before.Children[0].ID, inventory.ChildPatch{Color: strPtr("pink")}); !errors.Is(err, inventory.ErrInvalidColor) {
		t.Errorf("UpdateChild(bad color) error = %v, want ErrInvalidColor", err)
	}

	after := inv.Snapshot()
	if after.Children[0].Name != before.Children[0].Name || after.Children[0].Color != before.Children[0].Color {
		t.Errorf("children changed: %+v -> %+v", before.Children, after.Children)
	}
}

func TestLocalInventory_DeleteCategoryCascades(t *testing.T) {
	inv, _, _ := newTestLocalInventory(t)
	ctx := testutil.TestContext(t)
	snap := inv.Snapshot()
	tops := categoryByName(t, snap, "トップス")
	bottoms := categoryByName(t, snap, "ボトムス")

	photo, err := inv.AddItem(ctx, ItemInput{Name: "Tシャツ", CategoryID: tops.ID},
		&ImageUpload{Body: bytes.NewReader(pngBytes(t, 4, 4)), Filename: "shirt.jpg"})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	if photo.ImageURL == nil {
		t.Fatal("ImageURL = nil, want stored image")
	}
	if _, err := inv.AddItem(ctx, ItemInput{Name: "ズボン", CategoryID: bottoms.ID}, nil); err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}

	if err := inv.DeleteCategory(ctx, tops.ID); err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}

	snap = inv.Snapshot()
	if len(snap.Categories) != 7 {
		t.Fatalf("len(Categories) = %d, want 7", len(snap.Categories))
	}
	for i, c := range snap.Categories {
		if c.Order != i {
			t.Errorf("%s.Order = %d, want %d", c.Name, c.Order, i)
		}
	}
	if len(snap.Items) != 1 || snap.Items[0].Name != "ズボン" {
		t.Errorf("items after DeleteCategory = %+v", snap.Items)
	}
	if _, err := os.Stat(*photo.ImageURL); !os.IsNotExist(err) {
		t.Errorf("image still on disk: stat error = %v", err)
	}
}

func TestLocalInventory_DeleteItemRemovesImage(t *testing.T) {
	inv, _, _ := newTestLocalInventory(t)
	ctx := testutil.TestContext(t)
	tops := categoryByName(t, inv.Snapshot(), "トップス")

	item, err := inv.AddItem(ctx, ItemInput{Name: "Tシャツ", CategoryID: tops.ID},
		&ImageUpload{Body: bytes.NewReader(pngBytes(t, 4, 4)), Filename: "shirt.png"})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	if err := inv.DeleteItem(ctx, item.ID); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	if _, err := os.Stat(*item.ImageURL); !os.IsNotExist(err) {
		t.Errorf("image still on disk: stat error = %v", err)
	}
	if err := inv.DeleteItem(ctx, item.ID); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("second DeleteItem() error = %v, want ErrItemNotFound", err)
	}
}

func TestLocalInventory_ExportImport(t *testing.T) {
	inv, _, _ := newTestLocalInventory(t)
	ctx := testutil.TestContext(t)
	if err := inv.UpdateFamilyName(ctx, "山田家"); err != nil {
		t.Fatalf("UpdateFamilyName() error = %v", err)
	}
	tops := categoryByName(t, inv.Snapshot(), "トップス")
	if _, err := inv.AddItem(ctx, ItemInput{Name: "Tシャツ", CategoryID: tops.ID},
		&ImageUpload{Body: bytes.NewReader(pngBytes(t, 4, 4)), Filename: "a.jpg"}); err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	before := inv.Snapshot()

	data, err := inv.Export(ctx)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if doc["note"] == "" || doc["exportedAt"] == nil {
		t.Errorf("export metadata missing: note=%v exportedAt=%v", doc["note"], doc["exportedAt"])
	}

	other, _, _ := newTestLocalInventory(t)
	if err := other.Import(ctx, data); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	after := other.Snapshot()
	if after.FamilyName != before.FamilyName {
		t.Errorf("FamilyName = %q, want %q", after.FamilyName, before.FamilyName)
	}
	if len(after.Children) != len(before.Children) || len(after.Categories) != len(before.Categories) {
		t.Fatalf("imported %d children / %d categories, want %d / %d",
			len(after.Children), len(after.Categories), len(before.Children), len(before.Categories))
	}
	for i := range before.Categories {
		if after.Categories[i] != before.Categories[i] {
			t.Errorf("category %d = %+v, want %+v", i, after.Categories[i], before.Categories[i])
		}
	}
	for _, it := range after.Items {
		if it.ImageURL != nil {
			t.Errorf("imported item %s has image %q, want nil", it.Name, *it.ImageURL)
		}
	}

	if err := other.Import(ctx, []byte(`{"version":1,"children":[]}`)); !errors.Is(err, repository.ErrInvalidSnapshotFormat) {
		t.Errorf("Import(missing categories) error = %v, want ErrInvalidSnapshotFormat", err)
	}
}

func TestLocalInventory_SaveFailureKeepsChange(t *testing.T) {
	repo := &failingSnapshotRepo{}
	images, err := repository.NewLocalImageStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewLocalImageStore() error = %v", err)
	}
	inv := NewLocalInventory(repo, images, zaptest.NewLogger(t))
	ctx := testutil.TestContext(t)
	if err := inv.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := inv.UpdateFamilyName(ctx, "佐藤家"); err != nil {
		t.Fatalf("UpdateFamilyName() error = %v", err)
	}
	if got := inv.Snapshot().FamilyName; got != "佐藤家" {
		t.Errorf("FamilyName = %q, want 佐藤家", got)
	}
	if repo.saves != 2 {
		t.Errorf("saves = %d, want 2", repo.saves)
	}
}

func TestLocalInventory_RejectsNonImageUpload(t *testing.T) {
	inv, _, _ := newTestLocalInventory(t)
	ctx := testutil.TestContext(t)
	tops := categoryByName(t, inv.Snapshot(), "トップス")

	page := []byte("<html><script>alert(1)</script></html>")
	_, err := inv.AddItem(ctx, ItemInput{Name: "Tシャツ", CategoryID: tops.ID},
		&ImageUpload{Body: bytes.NewReader(page), Filename: "evil.html"})
	if !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("AddItem(html) error = %v, want ErrInvalidImage", err)
	}
	if n := len(inv.Snapshot().Items); n != 0 {
		t.Errorf("len(Items) = %d after rejected upload, want 0", n)
	}

	// A real photo under a misleading name is stored by its content type.
	item, err := inv.AddItem(ctx, ItemInput{Name: "Tシャツ", CategoryID: tops.ID},
		&ImageUpload{Body: bytes.NewReader(pngBytes(t, 4, 4)), Filename: "evil.html"})
	if err != nil {
		t.Fatalf("AddItem(png) error = %v", err)
	}
	if item.ImageURL == nil || filepath.Ext(*item.ImageURL) != ".png" {
		t.Errorf("ImageURL = %v, want a .png file", item.ImageURL)
	}
}

package inventory

import (
	"sort"
	"strings"
	"time"

	"kodomo/inventoryhub/internal/model"
)

// Every transform returns a fresh slice; inputs are never modified.

type ChildPatch struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
	Emoji *string `json:"emoji"`
}

// CategoryPatch carries name and emoji only. Order changes go through ReorderCategories.
type CategoryPatch struct {
	Name  *string `json:"name"`
	Emoji *string `json:"emoji"`
}

type ItemPatch struct {
	Name       *string `json:"name" form:"name"`
	CategoryID *string `json:"categoryId" form:"categoryId"`
	ChildID    *string `json:"childId" form:"childId"`
	Size       *string `json:"size" form:"size"`
	Brand      *string `json:"brand" form:"brand"`
	Quantity   *int    `json:"quantity" form:"quantity"`
	Notes      *string `json:"notes" form:"notes"`
}

func (p ChildPatch) Empty() bool    { return p.Name == nil && p.Color == nil && p.Emoji == nil }
func (p CategoryPatch) Empty() bool { return p.Name == nil && p.Emoji == nil }

func AppendChild(children []model.Child, child model.Child) []model.Child {
	out := make([]model.Child, 0, len(children)+1)
	out = append(out, children...)
	return append(out, child)
}

// PatchChild applies p to the child with the given id. found is false when no child matched.
func PatchChild(children []model.Child, id string, p ChildPatch) (out []model.Child, found bool) {
	out = append([]model.Child{}, children...)
	for i := range out {
		if out[i].ID != id {
			continue
		}
		if p.Name != nil {
			out[i].Name = strings.TrimSpace(*p.Name)
		}
		if p.Color != nil {
			out[i].Color = *p.Color
		}
		if p.Emoji != nil {
			out[i].Emoji = *p.Emoji
		}
		return out, true
	}
	return out, false
}

func RemoveChild(children []model.Child, id string) []model.Child {
	out := make([]model.Child, 0, len(children))
	for _, c := range children {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

// ReassignChild moves the items of a removed child to the shared pool.
// The returned changed slice holds only the touched items.
func ReassignChild(items []model.InventoryItem, childID string, now time.Time) (out, changed []model.InventoryItem) {
	out = make([]model.InventoryItem, len(items))
	for i, item := range items {
		if item.ChildID == childID {
			item.ChildID = model.SharedChildID
			item.UpdatedAt = Touch(item, now)
			changed = append(changed, item)
		}
		out[i] = item
	}
	return out, changed
}

// AppendCategory places the new category last.
func AppendCategory(categories []model.Category, category model.Category) []model.Category {
	out := SortCategories(categories)
	category.Order = len(out)
	return append(out, category)
}

func PatchCategory(categories []model.Category, id string, p CategoryPatch) (out []model.Category, found bool) {
	out = append([]model.Category{}, categories...)
	for i := range out {
		if out[i].ID != id {
			continue
		}
		if p.Name != nil {
			out[i].Name = strings.TrimSpace(*p.Name)
		}
		if p.Emoji != nil {
			out[i].Emoji = *p.Emoji
		}
		return out, true
	}
	return out, false
}

// RemoveCategory drops the category and renumbers the rest 0..M-1 keeping their relative order.
func RemoveCategory(categories []model.Category, id string) []model.Category {
	sorted := SortCategories(categories)
	out := make([]model.Category, 0, len(sorted))
	for _, c := range sorted {
		if c.ID == id {
			continue
		}
		c.Order = len(out)
		out = append(out, c)
	}
	return out
}

// ReorderCategories sets each category's order to its index in orderedIDs.
// orderedIDs must be a permutation of the current ids.
func ReorderCategories(current []model.Category, orderedIDs []string) ([]model.Category, error) {
	if len(orderedIDs) != len(current) {
		return nil, ErrInvalidOrder
	}
	byID := make(map[string]model.Category, len(current))
	for _, c := range current {
		byID[c.ID] = c
	}
	out := make([]model.Category, 0, len(orderedIDs))
	seen := make(map[string]struct{}, len(orderedIDs))
	for i, id := range orderedIDs {
		c, ok := byID[id]
		if !ok {
			return nil, ErrInvalidOrder
		}
		if _, dup := seen[id]; dup {
			return nil, ErrInvalidOrder
		}
		seen[id] = struct{}{}
		c.Order = i
		out = append(out, c)
	}
	return out, nil
}

// SplitByCategory partitions items into those kept and those belonging to categoryID.
func SplitByCategory(items []model.InventoryItem, categoryID string) (kept, removed []model.InventoryItem) {
	kept = make([]model.InventoryItem, 0, len(items))
	for _, item := range items {
		if item.CategoryID == categoryID {
			removed = append(removed, item)
			continue
		}
		kept = append(kept, item)
	}
	return kept, removed
}

// ApplyItemPatch returns item with the patch applied and updatedAt touched. Text fields are trimmed.
func ApplyItemPatch(item model.InventoryItem, p ItemPatch, now time.Time) model.InventoryItem {
	if p.Name != nil {
		item.Name = strings.TrimSpace(*p.Name)
	}
	if p.CategoryID != nil {
		item.CategoryID = *p.CategoryID
	}
	if p.ChildID != nil {
		item.ChildID = *p.ChildID
	}
	if p.Size != nil {
		item.Size = strings.TrimSpace(*p.Size)
	}
	if p.Brand != nil {
		item.Brand = strings.TrimSpace(*p.Brand)
	}
	if p.Quantity != nil {
		item.Quantity = *p.Quantity
	}
	if p.Notes != nil {
		item.Notes = strings.TrimSpace(*p.Notes)
	}
	item.UpdatedAt = Touch(item, now)
	return item
}

// Touch returns the next updatedAt for item: now, unless that would move the
// timestamp backwards or before createdAt.
func Touch(item model.InventoryItem, now time.Time) time.Time {
	next := now
	if next.Before(item.UpdatedAt) {
		next = item.UpdatedAt
	}
	if next.Before(item.CreatedAt) {
		next = item.CreatedAt
	}
	return next
}

// SortCategories returns a copy ordered by Order, ties broken by the input position.
func SortCategories(categories []model.Category) []model.Category {
	out := append([]model.Category{}, categories...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// NormalizeItem trims text fields before validation.
func NormalizeItem(item model.InventoryItem) model.InventoryItem {
	item.Name = strings.TrimSpace(item.Name)
	item.Size = strings.TrimSpace(item.Size)
	item.Brand = strings.TrimSpace(item.Brand)
	item.Notes = strings.TrimSpace(item.Notes)
	return item
}

package inventory

import (
	"sort"
	"strings"

	"kodomo/inventoryhub/internal/model"
)

// Filter narrows a list of items. Empty fields do not constrain; set fields combine with AND.
type Filter struct {
	ChildID    string `form:"childId" json:"childId"`
	CategoryID string `form:"categoryId" json:"categoryId"`
	Size       string `form:"size" json:"size"`
	Brand      string `form:"brand" json:"brand"`
	SearchText string `form:"q" json:"searchText"`
	// IncludeShared lets a child filter also match items shared by the household.
	IncludeShared bool `form:"includeShared" json:"includeShared"`
}

type CategorySummary struct {
	Category      model.Category `json:"category"`
	ItemCount     int            `json:"itemCount"`
	TotalQuantity int            `json:"totalQuantity"`
}

func (f Filter) Match(item model.InventoryItem) bool {
	if f.ChildID != "" && item.ChildID != f.ChildID {
		if !f.IncludeShared || !item.IsShared() {
			return false
		}
	}
	if f.CategoryID != "" && item.CategoryID != f.CategoryID {
		return false
	}
	if f.Size != "" && item.Size != f.Size {
		return false
	}
	if f.Brand != "" && item.Brand != f.Brand {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.SearchText)); q != "" {
		if !strings.Contains(strings.ToLower(item.Name), q) &&
			!strings.Contains(strings.ToLower(item.Brand), q) &&
			!strings.Contains(strings.ToLower(item.Notes), q) {
			return false
		}
	}
	return true
}

// FilterItems returns the matching items in their original order.
func FilterItems(items []model.InventoryItem, f Filter) []model.InventoryItem {
	out := make([]model.InventoryItem, 0, len(items))
	for _, item := range items {
		if f.Match(item) {
			out = append(out, item)
		}
	}
	return out
}

// SummarizeCategories counts the items of every category, in display order.
// Categories with no matching items are reported with zero counts. The filter's
// CategoryID is ignored so every category gets a row.
func SummarizeCategories(categories []model.Category, items []model.InventoryItem, f Filter) []CategorySummary {
	f.CategoryID = ""
	sorted := SortCategories(categories)
	index := make(map[string]int, len(sorted))
	out := make([]CategorySummary, len(sorted))
	for i, c := range sorted {
		out[i].Category = c
		index[c.ID] = i
	}
	for _, item := range items {
		i, ok := index[item.CategoryID]
		if !ok || !f.Match(item) {
			continue
		}
		out[i].ItemCount++
		out[i].TotalQuantity += item.Quantity
	}
	return out
}

func AvailableSizes(items []model.InventoryItem, childID, categoryID string) []string {
	return distinct(items, childID, categoryID, func(i model.InventoryItem) string { return i.Size })
}

func AvailableBrands(items []model.InventoryItem, childID, categoryID string) []string {
	return distinct(items, childID, categoryID, func(i model.InventoryItem) string { return i.Brand })
}

func distinct(items []model.InventoryItem, childID, categoryID string, field func(model.InventoryItem) string) []string {
	scope := Filter{ChildID: childID, CategoryID: categoryID}
	seen := make(map[string]struct{})
	out := []string{}
	for _, item := range items {
		v := field(item)
		if v == "" || !scope.Match(item) {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

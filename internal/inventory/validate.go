package inventory

import (
	"regexp"
	"strings"

	"kodomo/inventoryhub/internal/model"
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ValidateItem checks an item against the household it is written into.
func ValidateItem(item model.InventoryItem, categories []model.Category, children []model.Child) error {
	if strings.TrimSpace(item.Name) == "" {
		return ErrNameRequired
	}
	if item.CategoryID == "" {
		return ErrCategoryRequired
	}
	if !hasCategory(categories, item.CategoryID) {
		return ErrUnknownCategory
	}
	if !item.IsShared() && !hasChild(children, item.ChildID) {
		return ErrUnknownChild
	}
	if item.Quantity < 1 {
		return ErrInvalidQuantity
	}
	return nil
}

func ValidateChild(child model.Child) error {
	if strings.TrimSpace(child.Name) == "" {
		return ErrNameRequired
	}
	if child.Color != "" && !colorPattern.MatchString(child.Color) {
		return ErrInvalidColor
	}
	return nil
}

func ValidateCategory(category model.Category) error {
	if strings.TrimSpace(category.Name) == "" {
		return ErrNameRequired
	}
	return nil
}

func hasCategory(categories []model.Category, id string) bool {
	for _, c := range categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

func hasChild(children []model.Child, id string) bool {
	for _, c := range children {
		if c.ID == id {
			return true
		}
	}
	return false
}

package inventory

import "errors"

var (
	ErrNameRequired     = errors.New("name is required")
	ErrCategoryRequired = errors.New("category is required")
	ErrUnknownCategory  = errors.New("category does not exist")
	ErrUnknownChild     = errors.New("child does not exist")
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrInvalidColor     = errors.New("color must be #RRGGBB")
	ErrInvalidOrder     = errors.New("order must list every category exactly once")
	ErrEmptyPatch       = errors.New("nothing to update")
)

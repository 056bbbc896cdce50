package service

import (
	"io"

	"kodomo/inventoryhub/internal/model"
)

type ChildInput struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
	Emoji string `json:"emoji"`
}

type CategoryInput struct {
	Name  string `json:"name" binding:"required"`
	Emoji string `json:"emoji"`
}

type ItemInput struct {
	Name       string `json:"name" form:"name"`
	CategoryID string `json:"categoryId" form:"categoryId"`
	ChildID    string `json:"childId" form:"childId"`
	Size       string `json:"size" form:"size"`
	Brand      string `json:"brand" form:"brand"`
	// Quantity defaults to 1 when omitted.
	Quantity *int   `json:"quantity" form:"quantity"`
	Notes    string `json:"notes" form:"notes"`
}

// ImageUpload is a newly picked photo: either an ephemeral file on disk or an uploaded body.
type ImageUpload struct {
	Path     string
	Body     io.Reader
	Filename string
}

// childOrShared treats an item without an owner as shared by the household.
func childOrShared(childID string) string {
	if childID == "" {
		return model.SharedChildID
	}
	return childID
}

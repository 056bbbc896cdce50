package handler

import (
	"github.com/gin-gonic/gin"

	"kodomo/inventoryhub/internal/inventory"
	"kodomo/inventoryhub/internal/service"
	"kodomo/inventoryhub/pkg/response"
)

type ItemHandler struct {
	itemService    service.ItemService
	maxUploadBytes int64
}

func NewItemHandler(itemService service.ItemService, maxUploadBytes int64) *ItemHandler {
	return &ItemHandler{itemService: itemService, maxUploadBytes: maxUploadBytes}
}

type FacetsResponse struct {
	Sizes  []string `json:"sizes"`
	Brands []string `json:"brands"`
}

// List returns the filtered items of a group together with summaries and facets.
func (h *ItemHandler) List(c *gin.Context) {
	view, ok := h.query(c)
	if !ok {
		return
	}
	response.Success(c, view)
}

func (h *ItemHandler) Summaries(c *gin.Context) {
	view, ok := h.query(c)
	if !ok {
		return
	}
	response.Success(c, view.Summaries)
}

func (h *ItemHandler) Facets(c *gin.Context) {
	view, ok := h.query(c)
	if !ok {
		return
	}
	response.Success(c, FacetsResponse{Sizes: view.Sizes, Brands: view.Brands})
}

func (h *ItemHandler) query(c *gin.Context) (*service.InventoryView, bool) {
	userID, ok := requireUser(c)
	if !ok {
		return nil, false
	}
	var f inventory.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		response.BadRequest(c, "invalid filter: "+err.Error())
		return nil, false
	}
	view, err := h.itemService.Query(c.Request.Context(), userID, c.Param("groupId"), f)
	if err != nil {
		writeError(c, err, "failed to list items")
		return nil, false
	}
	return view, true
}

func (h *ItemHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	item, err := h.itemService.GetItem(c.Request.Context(), userID, c.Param("groupId"), c.Param("itemId"))
	if err != nil {
		writeError(c, err, "failed to load item")
		return
	}
	response.Success(c, item)
}

// Create accepts JSON, or multipart form fields with an optional "image" file.
func (h *ItemHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	limitBody(c, h.maxUploadBytes)

	var req service.ItemInput
	var image *service.ImageUpload
	if isMultipart(c) {
		if err := c.ShouldBind(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
		img, f, err := formImage(c)
		if err != nil {
			response.BadRequest(c, "invalid image upload: "+err.Error())
			return
		}
		if f != nil {
			defer f.Close()
		}
		image = img
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	item, err := h.itemService.AddItem(c.Request.Context(), userID, c.Param("groupId"), req, image)
	if err != nil {
		writeError(c, err, "failed to add item")
		return
	}
	response.Created(c, item)
}

func (h *ItemHandler) Update(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	limitBody(c, h.maxUploadBytes)

	var req inventory.ItemPatch
	var image *service.ImageUpload
	if isMultipart(c) {
		if err := c.ShouldBind(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
		img, f, err := formImage(c)
		if err != nil {
			response.BadRequest(c, "invalid image upload: "+err.Error())
			return
		}
		if f != nil {
			defer f.Close()
		}
		image = img
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	item, err := h.itemService.UpdateItem(c.Request.Context(), userID, c.Param("groupId"), c.Param("itemId"), req, image)
	if err != nil {
		writeError(c, err, "failed to update item")
		return
	}
	response.Success(c, item)
}

func (h *ItemHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.itemService.DeleteItem(c.Request.Context(), userID, c.Param("groupId"), c.Param("itemId")); err != nil {
		writeError(c, err, "failed to delete item")
		return
	}
	response.Success(c, nil)
}

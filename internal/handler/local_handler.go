package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"kodomo/inventoryhub/internal/inventory"
	"kodomo/inventoryhub/internal/model"
	"kodomo/inventoryhub/internal/repository"
	"kodomo/inventoryhub/internal/service"
	"kodomo/inventoryhub/pkg/response"
)

// LocalHandler exposes the single household snapshot of the local variant.
type LocalHandler struct {
	inventory      service.LocalInventory
	maxUploadBytes int64
}

func NewLocalHandler(inv service.LocalInventory, maxUploadBytes int64) *LocalHandler {
	return &LocalHandler{inventory: inv, maxUploadBytes: maxUploadBytes}
}

type LocalItemsResponse struct {
	Items     []model.InventoryItem       `json:"items"`
	Summaries []inventory.CategorySummary `json:"summaries"`
	Sizes     []string                    `json:"sizes"`
	Brands    []string                    `json:"brands"`
}

func (h *LocalHandler) Snapshot(c *gin.Context) {
	response.Success(c, h.inventory.Snapshot())
}

func (h *LocalHandler) ReplaceAll(c *gin.Context) {
	var req model.Snapshot
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.inventory.ReplaceAll(c.Request.Context(), req); err != nil {
		writeError(c, err, "failed to replace data")
		return
	}
	response.Success(c, h.inventory.Snapshot())
}

func (h *LocalHandler) UpdateFamilyName(c *gin.Context) {
	var req GroupNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.inventory.UpdateFamilyName(c.Request.Context(), req.Name); err != nil {
		writeError(c, err, "failed to rename family")
		return
	}
	response.Success(c, nil)
}

func (h *LocalHandler) AddChild(c *gin.Context) {
	var req service.ChildInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	child, err := h.inventory.AddChild(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "failed to add child")
		return
	}
	response.Created(c, child)
}

func (h *LocalHandler) UpdateChild(c *gin.Context) {
	var req inventory.ChildPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Empty() {
		response.BadRequest(c, inventory.ErrEmptyPatch.Error())
		return
	}
	if err := h.inventory.UpdateChild(c.Request.Context(), c.Param("childId"), req); err != nil {
		writeError(c, err, "failed to update child")
		return
	}
	response.Success(c, nil)
}

func (h *LocalHandler) DeleteChild(c *gin.Context) {
	if err := h.inventory.DeleteChild(c.Request.Context(), c.Param("childId")); err != nil {
		writeError(c, err, "failed to delete child")
		return
	}
	response.Success(c, nil)
}

func (h *LocalHandler) AddCategory(c *gin.Context) {
	var req service.CategoryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	category, err := h.inventory.AddCategory(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "failed to add category")
		return
	}
	response.Created(c, category)
}

func (h *LocalHandler) UpdateCategory(c *gin.Context) {
	var req inventory.CategoryPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Empty() {
		response.BadRequest(c, inventory.ErrEmptyPatch.Error())
		return
	}
	if err := h.inventory.UpdateCategory(c.Request.Context(), c.Param("categoryId"), req); err != nil {
		writeError(c, err, "failed to update category")
		return
	}
	response.Success(c, nil)
}

func (h *LocalHandler) DeleteCategory(c *gin.Context) {
	if err := h.inventory.DeleteCategory(c.Request.Context(), c.Param("categoryId")); err != nil {
		writeError(c, err, "failed to delete category")
		return
	}
	response.Success(c, nil)
}

func (h *LocalHandler) ReorderCategories(c *gin.Context) {
	var req CategoryOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.inventory.ReorderCategories(c.Request.Context(), req.CategoryIDs); err != nil {
		writeError(c, err, "failed to reorder categories")
		return
	}
	response.Success(c, nil)
}

func (h *LocalHandler) ListItems(c *gin.Context) {
	var f inventory.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		response.BadRequest(c, "invalid filter: "+err.Error())
		return
	}
	response.Success(c, LocalItemsResponse{
		Items:     h.inventory.FilteredItems(f),
		Summaries: h.inventory.CategorySummaries(f),
		Sizes:     h.inventory.AvailableSizes(f.ChildID, f.CategoryID),
		Brands:    h.inventory.AvailableBrands(f.ChildID, f.CategoryID),
	})
}

func (h *LocalHandler) AddItem(c *gin.Context) {
	limitBody(c, h.maxUploadBytes)

	var req service.ItemInput
	image, cleanup, ok := h.bindItem(c, &req)
	if !ok {
		return
	}
	defer cleanup()

	item, err := h.inventory.AddItem(c.Request.Context(), req, image)
	if err != nil {
		writeError(c, err, "failed to add item")
		return
	}
	response.Created(c, item)
}

func (h *LocalHandler) UpdateItem(c *gin.Context) {
	limitBody(c, h.maxUploadBytes)

	var req inventory.ItemPatch
	image, cleanup, ok := h.bindItem(c, &req)
	if !ok {
		return
	}
	defer cleanup()

	item, err := h.inventory.UpdateItem(c.Request.Context(), c.Param("itemId"), req, image)
	if err != nil {
		writeError(c, err, "failed to update item")
		return
	}
	response.Success(c, item)
}

func (h *LocalHandler) DeleteItem(c *gin.Context) {
	if err := h.inventory.DeleteItem(c.Request.Context(), c.Param("itemId")); err != nil {
		writeError(c, err, "failed to delete item")
		return
	}
	response.Success(c, nil)
}

// Export downloads the snapshot without images.
func (h *LocalHandler) Export(c *gin.Context) {
	data, err := h.inventory.Export(c.Request.Context())
	if err != nil {
		writeError(c, err, "failed to export data")
		return
	}
	filename := fmt.Sprintf("family-inventory-%s.json", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, repository.ExportMIMEType, data)
}

// Import replaces the snapshot with an uploaded export, sent either as the raw
// body or as the "file" form field.
func (h *LocalHandler) Import(c *gin.Context) {
	limitBody(c, h.maxUploadBytes)

	var data []byte
	var err error
	if isMultipart(c) {
		data, err = readFormFile(c, "file")
	} else {
		data, err = io.ReadAll(c.Request.Body)
	}
	if err != nil {
		response.BadRequest(c, "invalid import: "+err.Error())
		return
	}
	if err := h.inventory.Import(c.Request.Context(), data); err != nil {
		writeError(c, err, "failed to import data")
		return
	}
	response.Success(c, h.inventory.Snapshot())
}

// bindItem binds JSON or multipart fields into dst. A multipart image is
// spooled to a temp file the container then copies into its image directory.
func (h *LocalHandler) bindItem(c *gin.Context, dst any) (*service.ImageUpload, func(), bool) {
	noop := func() {}
	if !isMultipart(c) {
		if err := c.ShouldBindJSON(dst); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return nil, noop, false
		}
		return nil, noop, true
	}
	if err := c.ShouldBind(dst); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return nil, noop, false
	}

	fh, err := c.FormFile(imageFormField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, noop, true
	}
	if err != nil {
		response.BadRequest(c, "invalid image upload: "+err.Error())
		return nil, noop, false
	}
	tmp, err := os.CreateTemp("", "inventory-upload-*"+filepath.Ext(fh.Filename))
	if err != nil {
		response.InternalError(c, "failed to buffer upload")
		return nil, noop, false
	}
	tmp.Close()
	cleanup := func() { os.Remove(tmp.Name()) }

	if err := c.SaveUploadedFile(fh, tmp.Name()); err != nil {
		cleanup()
		response.BadRequest(c, "invalid image upload: "+err.Error())
		return nil, noop, false
	}
	return &service.ImageUpload{Path: tmp.Name(), Filename: fh.Filename}, cleanup, true
}

func readFormFile(c *gin.Context, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

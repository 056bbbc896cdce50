package handler

import (
	"github.com/gin-gonic/gin"

	"kodomo/inventoryhub/internal/service"
	"kodomo/inventoryhub/pkg/response"
)

type VisionHandler struct {
	visionService  service.VisionService
	maxUploadBytes int64
}

func NewVisionHandler(visionService service.VisionService, maxUploadBytes int64) *VisionHandler {
	return &VisionHandler{visionService: visionService, maxUploadBytes: maxUploadBytes}
}

// Extract reads an item photo from the "image" form field and returns the
// suggested item fields. Nothing is stored.
func (h *VisionHandler) Extract(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	limitBody(c, h.maxUploadBytes)
	if !isMultipart(c) {
		response.BadRequest(c, "multipart form with an image is required")
		return
	}
	image, f, err := formImage(c)
	if err != nil {
		response.BadRequest(c, "invalid image upload: "+err.Error())
		return
	}
	if f == nil {
		response.BadRequest(c, "image is required")
		return
	}
	defer f.Close()

	extracted, err := h.visionService.ExtractItem(c.Request.Context(), userID, c.Param("groupId"), image)
	if err != nil {
		writeError(c, err, "failed to read item photo")
		return
	}
	response.Success(c, extracted)
}

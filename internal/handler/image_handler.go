package handler

import (
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"kodomo/inventoryhub/internal/repository"
	"kodomo/inventoryhub/pkg/response"
)

type ImageHandler struct {
	store     *repository.LocalImageStore
	mountPath string
}

// NewImageHandler serves store under the path of baseURL, which may be a bare
// path ("/images") or an absolute URL pointing back at this server.
func NewImageHandler(store *repository.LocalImageStore, baseURL string) *ImageHandler {
	mount := baseURL
	if u, err := url.Parse(baseURL); err == nil {
		mount = u.Path
	}
	return &ImageHandler{store: store, mountPath: strings.TrimRight(mount, "/")}
}

func (h *ImageHandler) MountPath() string { return h.mountPath }

// Serve streams a managed image. Names are random, so the route is public
// like the S3 object URLs it stands in for.
func (h *ImageHandler) Serve(c *gin.Context) {
	name := c.Param("name")
	contentType, ok := repository.ImageContentType(strings.TrimPrefix(path.Ext(name), "."))
	if !ok {
		response.NotFound(c, "image not found")
		return
	}
	f, err := h.store.Open(h.store.Ref(name))
	if err != nil {
		response.NotFound(c, "image not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		response.InternalError(c, "failed to read image")
		return
	}
	c.Header("Content-Type", contentType)
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Cache-Control", "public, max-age=86400, immutable")
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), f)
}

package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"kodomo/inventoryhub/internal/service"
)

const syncKeepAlive = 25 * time.Second

type SyncHandler struct {
	syncService service.SyncService
}

func NewSyncHandler(syncService service.SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

// Stream pushes the caller's group list, and the items of ?groupId when set,
// as server-sent events. Every event carries a full replacement.
func (h *SyncHandler) Stream(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	session, err := h.syncService.Open(ctx, userID)
	if err != nil {
		writeError(c, err, "failed to open sync session")
		return
	}
	defer session.Close()

	if groupID := c.Query("groupId"); groupID != "" {
		if err := session.SetCurrentGroup(ctx, groupID); err != nil {
			writeError(c, err, "failed to follow group")
			return
		}
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	keepAlive := time.NewTicker(syncKeepAlive)
	defer keepAlive.Stop()

	updates := session.Updates()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case u, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent(string(u.Kind), u)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}

package handler

import (
	"github.com/gin-gonic/gin"

	"kodomo/inventoryhub/internal/service"
	"kodomo/inventoryhub/pkg/response"
)

type IdentityHandler struct {
	linkedAccounts service.LinkedAccountService
}

func NewIdentityHandler(linkedAccounts service.LinkedAccountService) *IdentityHandler {
	return &IdentityHandler{linkedAccounts: linkedAccounts}
}

func (h *IdentityHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	accounts, err := h.linkedAccounts.ListLinkedAccounts(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "list linked accounts failed")
		return
	}
	response.Success(c, accounts)
}

func (h *IdentityHandler) Unlink(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.linkedAccounts.UnlinkAccount(c.Request.Context(), userID, c.Param("accountId")); err != nil {
		writeError(c, err, "unlink account failed")
		return
	}
	response.Success(c, nil)
}

package handler

import (
	"github.com/gin-gonic/gin"

	"kodomo/inventoryhub/internal/service"
	"kodomo/inventoryhub/pkg/response"
)

type InviteHandler struct {
	inviteService service.InviteService
}

func NewInviteHandler(inviteService service.InviteService) *InviteHandler {
	return &InviteHandler{inviteService: inviteService}
}

type CreateInviteRequest struct {
	// MaxUses of 0 means unlimited.
	MaxUses int `json:"maxUses"`
}

type RedeemInviteRequest struct {
	Code string `json:"code" binding:"required"`
}

type SendInviteRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h *InviteHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req CreateInviteRequest
	// An empty body creates an unlimited code.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	code, err := h.inviteService.CreateInviteCode(c.Request.Context(), userID, c.Param("groupId"), req.MaxUses)
	if err != nil {
		writeError(c, err, "failed to create invite code")
		return
	}
	response.Created(c, code)
}

func (h *InviteHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	codes, err := h.inviteService.ListInviteCodes(c.Request.Context(), userID, c.Param("groupId"))
	if err != nil {
		writeError(c, err, "failed to list invite codes")
		return
	}
	response.Success(c, codes)
}

func (h *InviteHandler) Revoke(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.inviteService.RevokeInviteCode(c.Request.Context(), userID, c.Param("groupId"), c.Param("codeId")); err != nil {
		writeError(c, err, "failed to revoke invite code")
		return
	}
	response.Success(c, nil)
}

func (h *InviteHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.inviteService.DeleteInviteCode(c.Request.Context(), userID, c.Param("groupId"), c.Param("codeId")); err != nil {
		writeError(c, err, "failed to delete invite code")
		return
	}
	response.Success(c, nil)
}

func (h *InviteHandler) Send(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req SendInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	err := h.inviteService.SendInviteCode(c.Request.Context(), userID, c.Param("groupId"), c.Param("codeId"), req.Email)
	if err != nil {
		writeError(c, err, "failed to send invite code")
		return
	}
	response.Success(c, nil)
}

// Redeem joins the caller to the group behind the code and returns that group.
func (h *InviteHandler) Redeem(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req RedeemInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	group, err := h.inviteService.RedeemInviteCode(c.Request.Context(), userID, req.Code)
	if err != nil {
		writeError(c, err, "failed to redeem invite code")
		return
	}
	response.Success(c, group)
}

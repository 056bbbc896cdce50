package handler

import (
	"github.com/gin-gonic/gin"

	"kodomo/inventoryhub/internal/inventory"
	"kodomo/inventoryhub/internal/model"
	"kodomo/inventoryhub/internal/service"
	"kodomo/inventoryhub/pkg/response"
)

type GroupHandler struct {
	groupService service.GroupService
}

func NewGroupHandler(groupService service.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

type GroupNameRequest struct {
	Name string `json:"name" binding:"required"`
}

type MemberRoleRequest struct {
	Role model.MemberRole `json:"role" binding:"required"`
}

type CategoryOrderRequest struct {
	CategoryIDs []string `json:"categoryIds" binding:"required"`
}

func (h *GroupHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	groups, err := h.groupService.ListGroups(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "failed to list groups")
		return
	}
	response.Success(c, groups)
}

func (h *GroupHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req GroupNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	group, err := h.groupService.CreateGroup(c.Request.Context(), userID, req.Name)
	if err != nil {
		writeError(c, err, "failed to create group")
		return
	}
	response.Created(c, group)
}

func (h *GroupHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	group, err := h.groupService.GetGroup(c.Request.Context(), userID, c.Param("groupId"))
	if err != nil {
		writeError(c, err, "failed to load group")
		return
	}
	response.Success(c, group)
}

func (h *GroupHandler) Rename(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req GroupNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	group, err := h.groupService.RenameGroup(c.Request.Context(), userID, c.Param("groupId"), req.Name)
	if err != nil {
		writeError(c, err, "failed to rename group")
		return
	}
	response.Success(c, group)
}

func (h *GroupHandler) RemoveMember(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	group, err := h.groupService.RemoveMember(c.Request.Context(), userID, c.Param("groupId"), c.Param("memberId"))
	if err != nil {
		writeError(c, err, "failed to remove member")
		return
	}
	response.Success(c, group)
}

func (h *GroupHandler) SetMemberRole(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req MemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	group, err := h.groupService.SetMemberRole(c.Request.Context(), userID, c.Param("groupId"), c.Param("memberId"), req.Role)
	if err != nil {
		writeError(c, err, "failed to change role")
		return
	}
	response.Success(c, group)
}

func (h *GroupHandler) AddChild(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req service.ChildInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	child, err := h.groupService.AddChild(c.Request.Context(), userID, c.Param("groupId"), req)
	if err != nil {
		writeError(c, err, "failed to add child")
		return
	}
	response.Created(c, child)
}

func (h *GroupHandler) UpdateChild(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req inventory.ChildPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Empty() {
		response.BadRequest(c, inventory.ErrEmptyPatch.Error())
		return
	}
	group, err := h.groupService.UpdateChild(c.Request.Context(), userID, c.Param("groupId"), c.Param("childId"), req)
	if err != nil {
		writeError(c, err, "failed to update child")
		return
	}
	response.Success(c, group)
}

func (h *GroupHandler) DeleteChild(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	group, err := h.groupService.DeleteChild(c.Request.Context(), userID, c.Param("groupId"), c.Param("childId"))
	if err != nil {
		writeError(c, err, "failed to delete child")
		return
	}
	response.Success(c, group)
}

func (h *GroupHandler) AddCategory(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req service.CategoryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	category, err := h.groupService.AddCategory(c.Request.Context(), userID, c.Param("groupId"), req)
	if err != nil {
		writeError(c, err, "failed to add category")
		return
	}
	response.Created(c, category)
}

func (h *GroupHandler) UpdateCategory(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req inventory.CategoryPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Empty() {
		response.BadRequest(c, inventory.ErrEmptyPatch.Error())
		return
	}
	group, err := h.groupService.UpdateCategory(c.Request.Context(), userID, c.Param("groupId"), c.Param("categoryId"), req)
	if err != nil {
		writeError(c, err, "failed to update category")
		return
	}
	response.Success(c, group)
}

func (h *GroupHandler) DeleteCategory(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	group, err := h.groupService.DeleteCategory(c.Request.Context(), userID, c.Param("groupId"), c.Param("categoryId"))
	if err != nil {
		writeError(c, err, "failed to delete category")
		return
	}
	response.Success(c, group)
}

func (h *GroupHandler) ReorderCategories(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req CategoryOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	group, err := h.groupService.ReorderCategories(c.Request.Context(), userID, c.Param("groupId"), req.CategoryIDs)
	if err != nil {
		writeError(c, err, "failed to reorder categories")
		return
	}
	response.Success(c, group)
}

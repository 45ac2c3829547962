package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nebari-dev/accessd/internal/service"
)

type RBACHandler struct {
	svc *service.RBACService
}

func NewRBACHandler(svc *service.RBACService) *RBACHandler {
	return &RBACHandler{svc: svc}
}

// ResourceRequest is the body of POST and PUT on resources.
type ResourceRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Endpoint    string `json:"endpoint" binding:"required"`
}

// ResourcePatchRequest is the body of PATCH on resources.
type ResourcePatchRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Endpoint    *string `json:"endpoint"`
}

// ActionRequest is the body of POST and PUT on actions.
type ActionRequest struct {
	Name        string `json:"name" binding:"required"`
	Code        string `json:"code" binding:"required"`
	Description string `json:"description"`
}

// ActionPatchRequest is the body of PATCH on actions.
type ActionPatchRequest struct {
	Name        *string `json:"name"`
	Code        *string `json:"code"`
	Description *string `json:"description"`
}

// PermissionRequest is the body of POST and PUT on permissions.
type PermissionRequest struct {
	Resource uint `json:"resource" binding:"required"`
	Action   uint `json:"action" binding:"required"`
}

// PermissionPatchRequest is the body of PATCH on permissions.
type PermissionPatchRequest struct {
	Resource *uint `json:"resource"`
	Action   *uint `json:"action"`
}

// RoleRequest is the body of POST and PUT on roles.
type RoleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsDefault   bool   `json:"is_default"`
	Permissions []uint `json:"permissions"`
}

// RolePatchRequest is the body of PATCH on roles. A present permissions
// list replaces the role's grants.
type RolePatchRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsDefault   *bool   `json:"is_default"`
	Permissions *[]uint `json:"permissions"`
}

// UserRoleRequest is the body of POST and PUT on user roles.
type UserRoleRequest struct {
	User uuid.UUID `json:"user"`
	Role uint      `json:"role" binding:"required"`
}

// UserRolePatchRequest is the body of PATCH on user roles.
type UserRolePatchRequest struct {
	User *uuid.UUID `json:"user"`
	Role *uint      `json:"role"`
}

func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return false
	}
	return true
}

// ListResources godoc
// @Summary List resources
// @Tags rbac
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Resource
// @Router /rbac/resources/ [get]
func (h *RBACHandler) ListResources(c *gin.Context) {
	resources, err := h.svc.ListResources(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resources)
}

// CreateResource godoc
// @Summary Create a resource
// @Tags rbac
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param resource body ResourceRequest true "Resource"
// @Success 201 {object} models.Resource
// @Failure 400 {object} ErrorResponse
// @Router /rbac/resources/ [post]
func (h *RBACHandler) CreateResource(c *gin.Context) {
	var req ResourceRequest
	if !bind(c, &req) {
		return
	}
	r, err := h.svc.CreateResource(c.Request.Context(), actor(c), service.ResourceInput{
		Name: req.Name, Description: req.Description, Endpoint: req.Endpoint,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// GetResource godoc
// @Summary Get a resource
// @Tags rbac
// @Security BearerAuth
// @Produce json
// @Param id path int true "Resource ID"
// @Success 200 {object} models.Resource
// @Failure 404 {object} ErrorResponse
// @Router /rbac/resources/{id}/ [get]
func (h *RBACHandler) GetResource(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	r, err := h.svc.GetResource(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// ReplaceResource godoc
// @Summary Replace a resource
// @Tags rbac
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Resource ID"
// @Param resource body ResourceRequest true "Resource"
// @Success 200 {object} models.Resource
// @Router /rbac/resources/{id}/ [put]
func (h *RBACHandler) ReplaceResource(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req ResourceRequest
	if !bind(c, &req) {
		return
	}
	in := service.ResourceInput{Name: req.Name, Description: req.Description, Endpoint: req.Endpoint}
	r, err := h.svc.UpdateResource(c.Request.Context(), actor(c), id, in.Patch())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// UpdateResource godoc
// @Summary Partially update a resource
// @Tags rbac
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Resource ID"
// @Param resource body ResourcePatchRequest true "Fields to change"
// @Success 200 {object} models.Resource
// @Router /rbac/resources/{id}/ [patch]
func (h *RBACHandler) UpdateResource(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req ResourcePatchRequest
	if !bind(c, &req) {
		return
	}
	r, err := h.svc.UpdateResource(c.Request.Context(), actor(c), id, service.ResourcePatch{
		Name: req.Name, Description: req.Description, Endpoint: req.Endpoint,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// DeleteResource godoc
// @Summary Delete a resource and its permissions
// @Tags rbac
// @Security BearerAuth
// @Param id path int true "Resource ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /rbac/resources/{id}/ [delete]
func (h *RBACHandler) DeleteResource(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteResource(c.Request.Context(), actor(c), id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListActions godoc
// @Summary List actions
// @Tags rbac
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Action
// @Router /rbac/actions/ [get]
func (h *RBACHandler) ListActions(c *gin.Context) {
	actions, err := h.svc.ListActions(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, actions)
}

// CreateAction godoc
// @Summary Create an action
// @Tags rbac
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param action body ActionRequest true "Action"
// @Success 201 {object} models.Action
// @Failure 400 {object} ErrorResponse
// @Router /rbac/actions/ [post]
func (h *RBACHandler) CreateAction(c *gin.Context) {
	var req ActionRequest
	if !bind(c, &req) {
		return
	}
	a, err := h.svc.CreateAction(c.Request.Context(), actor(c), service.ActionInput{
		Name: req.Name, Code: req.Code, Description: req.Description,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// GetAction godoc
// @Summary Get an action
// @Tags rbac
// @Security BearerAuth
// @Produce json
// @Param id path int true "Action ID"
// @Success 200 {object} models.Action
// @Router /rbac/actions/{id}/ [get]
func (h *RBACHandler) GetAction(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	a, err := h.svc.GetAction(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// ReplaceAction godoc
// @Summary Replace an action
// @Tags rbac
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Action ID"
// @Param action body ActionRequest true "Action"
// @Success 200 {object} models.Action
// @Router /rbac/actions/{id}/ [put]
func (h *RBACHandler) ReplaceAction(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req ActionRequest
	if !bind(c, &req) {
		return
	}
	in := service.ActionInput{Name: req.Name, Code: req.Code, Description: req.Description}
	a, err := h.svc.UpdateAction(c.Request.Context(), actor(c), id, in.Patch())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// UpdateAction godoc
// @Summary Partially update an action
// @Tags rbac
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Action ID"
// @Param action body ActionPatchRequest true "Fields to change"
// @Success 200 {object} models.Action
// @Router /rbac/actions/{id}/ [patch]
func (h *RBACHandler) UpdateAction(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req ActionPatchRequest
	if !bind(c, &req) {
		return
	}
	a, err := h.svc.UpdateAction(c.Request.Context(), actor(c), id, service.ActionPatch{
		Name: req.Name, Code: req.Code, Description: req.Description,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// DeleteAction godoc
// @Summary Delete an action and its permissions
// @Tags rbac
// @Security BearerAuth
// @Param id path int true "Action ID"
// @Success 204
// @Router /rbac/actions/{id}/ [delete]
func (h *RBACHandler) DeleteAction(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteAction(c.Request.Context(), actor(c), id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListPermissions godoc
// @Summary List permissions
// @Tags rbac
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Permission
// @Router /rbac/permissions/ [get]
func (h *RBACHandler) ListPermissions(c *gin.Context) {
	perms, err := h.svc.ListPermissions(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, perms)
}

// CreatePermission godoc
// @Summary Create a permission
// @Tags rbac
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param permission body PermissionRequest true "Permission"
// @Success 201 {object} models.Permission
// @Failure 400 {object} ErrorResponse
// @Router /rbac/permissions/ [post]
func (h *RBACHandler) CreatePermission(c *gin.Context) {
	var req PermissionRequest
	if !bind(c, &req) {
		return
	}
	p, err := h.svc.CreatePermission(c.Request.Context(), actor(c), service.PermissionInput{
		ResourceID: req.Resource, ActionID: req.Action,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// GetPermission godoc
// @Summary Get a permission
// @Tags rbac
// @Security BearerAuth
// @Produce json
// @Param id path int true "Permission ID"
// @Success 200 {object} models.Permission
// @Router /rbac/permissions/{id}/ [get]
func (h *RBACHandler) GetPermission(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	p, err := h.svc.GetPermission(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ReplacePermission godoc
// @Summary Replace a permission
// @Tags rbac
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Permission ID"
// @Param permission body PermissionRequest true "Permission"
// @Success 200 {object} models.Permission
// @Router /rbac/permissions/{id}/ [put]
func (h *RBACHandler) ReplacePermission(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req PermissionRequest
	if !bind(c, &req) {
		return
	}
	in := service.PermissionInput{ResourceID: req.Resource, ActionID: req.Action}
	p, err := h.svc.UpdatePermission(c.Request.Context(), actor(c), id, in.Patch())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdatePermission godoc
// @Summary Partially update a permission
// @Tags rbac
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Permission ID"
// @Param permission body PermissionPatchRequest true "Fields to change"
// @Success 200 {object} models.Permission
// @Router /rbac/permissions/{id}/ [patch]
func (h *RBACHandler) UpdatePermission(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req PermissionPatchRequest
	if !bind(c, &req) {
		return
	}
	p, err := h.svc.UpdatePermission(c.Request.Context(), actor(c), id, service.PermissionPatch{
		ResourceID: req.Resource, ActionID: req.Action,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeletePermission godoc
// @Summary Delete a permission
// @Tags rbac
// @Security BearerAuth
// @Param id path int true "Permission ID"
// @Success 204
// @Router /rbac/permissions/{id}/ [delete]
func (h *RBACHandler) DeletePermission(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.DeletePermission(c.Request.Context(), actor(c), id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListRoles godoc
// @Summary List roles
// @Tags rbac
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Role
// @Router /rbac/roles/ [get]
func (h *RBACHandler) ListRoles(c *gin.Context) {
	roles, err := h.svc.ListRoles(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

// CreateRole godoc
// @Summary Create a role
// @Tags rbac
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param role body RoleRequest true "Role"
// @Success 201 {object} models.Role
// @Failure 400 {object} ErrorResponse
// @Router /rbac/roles/ [post]
func (h *RBACHandler) CreateRole(c *gin.Context) {
	var req RoleRequest
	if !bind(c, &req) {
		return
	}
	r, err := h.svc.CreateRole(c.Request.Context(), actor(c), service.RoleInput{
		Name: req.Name, Description: req.Description, IsDefault: req.IsDefault, PermissionIDs: req.Permissions,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// GetRole godoc
// @Summary Get a role
// @Tags rbac
// @Security BearerAuth
// @Produce json
// @Param id path int true "Role ID"
// @Success 200 {object} models.Role
// @Router /rbac/roles/{id}/ [get]
func (h *RBACHandler) GetRole(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	r, err := h.svc.GetRole(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// ReplaceRole godoc
// @Summary Replace a role and its permission set
// @Tags rbac
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Role ID"
// @Param role body RoleRequest true "Role"
// @Success 200 {object} models.Role
// @Router /rbac/roles/{id}/ [put]
func (h *RBACHandler) ReplaceRole(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req RoleRequest
	if !bind(c, &req) {
		return
	}
	in := service.RoleInput{Name: req.Name, Description: req.Description, IsDefault: req.IsDefault, PermissionIDs: req.Permissions}
	r, err := h.svc.UpdateRole(c.Request.Context(), actor(c), id, in.Patch())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// UpdateRole godoc
// @Summary Partially update a role
// @Tags rbac
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Role ID"
// @Param role body RolePatchRequest true "Fields to change"
// @Success 200 {object} models.Role
// @Router /rbac/roles/{id}/ [patch]
func (h *RBACHandler) UpdateRole(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req RolePatchRequest
	if !bind(c, &req) {
		return
	}
	r, err := h.svc.UpdateRole(c.Request.Context(), actor(c), id, service.RolePatch{
		Name: req.Name, Description: req.Description, IsDefault: req.IsDefault, PermissionIDs: req.Permissions,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// DeleteRole godoc
// @Summary Delete a role
// @Tags rbac
// @Security BearerAuth
// @Param id path int true "Role ID"
// @Success 204
// @Router /rbac/roles/{id}/ [delete]
func (h *RBACHandler) DeleteRole(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteRole(c.Request.Context(), actor(c), id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListUserRoles godoc
// @Summary List role assignments
// @Description Superusers see every assignment, other callers only their own.
// @Tags rbac
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.UserRole
// @Router /rbac/user-roles/ [get]
func (h *RBACHandler) ListUserRoles(c *gin.Context) {
	urs, err := h.svc.ListUserRoles(c.Request.Context(), actor(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, urs)
}

// CreateUserRole godoc
// @Summary Assign a role to a user
// @Tags rbac
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param assignment body UserRoleRequest true "Assignment"
// @Success 201 {object} models.UserRole
// @Failure 400 {object} ErrorResponse
// @Router /rbac/user-roles/ [post]
func (h *RBACHandler) CreateUserRole(c *gin.Context) {
	var req UserRoleRequest
	if !bind(c, &req) {
		return
	}
	if req.User == uuid.Nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "user is required"})
		return
	}
	ur, err := h.svc.CreateUserRole(c.Request.Context(), actor(c), service.UserRoleInput{
		UserID: req.User, RoleID: req.Role,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ur)
}

// GetUserRole godoc
// @Summary Get a role assignment
// @Tags rbac
// @Security BearerAuth
// @Produce json
// @Param id path int true "Assignment ID"
// @Success 200 {object} models.UserRole
// @Router /rbac/user-roles/{id}/ [get]
func (h *RBACHandler) GetUserRole(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	ur, err := h.svc.GetUserRole(c.Request.Context(), actor(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ur)
}

// ReplaceUserRole godoc
// @Summary Replace a role assignment
// @Tags rbac
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Assignment ID"
// @Param assignment body UserRoleRequest true "Assignment"
// @Success 200 {object} models.UserRole
// @Router /rbac/user-roles/{id}/ [put]
func (h *RBACHandler) ReplaceUserRole(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req UserRoleRequest
	if !bind(c, &req) {
		return
	}
	if req.User == uuid.Nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "user is required"})
		return
	}
	in := service.UserRoleInput{UserID: req.User, RoleID: req.Role}
	ur, err := h.svc.UpdateUserRole(c.Request.Context(), actor(c), id, in.Patch())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ur)
}

// UpdateUserRole godoc
// @Summary Partially update a role assignment
// @Tags rbac
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Assignment ID"
// @Param assignment body UserRolePatchRequest true "Fields to change"
// @Success 200 {object} models.UserRole
// @Router /rbac/user-roles/{id}/ [patch]
func (h *RBACHandler) UpdateUserRole(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req UserRolePatchRequest
	if !bind(c, &req) {
		return
	}
	ur, err := h.svc.UpdateUserRole(c.Request.Context(), actor(c), id, service.UserRolePatch{
		UserID: req.User, RoleID: req.Role,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ur)
}

// DeleteUserRole godoc
// @Summary Remove a role assignment
// @Tags rbac
// @Security BearerAuth
// @Param id path int true "Assignment ID"
// @Success 204
// @Router /rbac/user-roles/{id}/ [delete]
func (h *RBACHandler) DeleteUserRole(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteUserRole(c.Request.Context(), actor(c), id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

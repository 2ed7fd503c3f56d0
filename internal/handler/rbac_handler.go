package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type RBACHandler struct {
	rbacService service.RBACService
	userService service.UserService
}

// NewRBACHandler sets up the routing dependencies for RBAC endpoints
func NewRBACHandler(rbacService service.RBACService, userService service.UserService) *RBACHandler {
	return &RBACHandler{rbacService: rbacService, userService: userService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *RBACHandler) RegisterRoutes(router *gin.RouterGroup) {
	rbac := router.Group("/rbac")

	admin := rbac.Group("")
	admin.Use(middleware.RequireRole(model.RoleOwner, model.RoleAdmin))
	{
		admin.GET("/roles", h.ListRoles)
		admin.PUT("/roles/:role/active", h.SetRoleActive)
		admin.GET("/permissions", h.GetPermissions)
		admin.PUT("/permissions/:role", h.UpdateRolePermissions)
		admin.GET("/modules", h.ListModuleAssignments)
		admin.GET("/modules/:role", h.GetModuleAssignment)
		admin.PUT("/modules/:role", h.OverrideModuleAssignment)
	}

	rbac.GET("/my-modules", middleware.RequireAuth(), h.MyModules)
}

// ListRoles returns every fixed role with its active flag and user count
// @Summary      List roles
// @Tags         rbac
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.RoleSummary}
// @Router       /rbac/roles [get]
func (h *RBACHandler) ListRoles(c *gin.Context) {
	roles, err := h.rbacService.ListRoles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, roles))
}

// SetRoleActive toggles the advisory active flag of a role
// @Summary      Set role active flag
// @Tags         rbac
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        role     path      string                        true  "Role"
// @Param        payload  body      service.SetRoleActiveRequest  true  "Active flag"
// @Success      200      {object}  response.Response
// @Router       /rbac/roles/{role}/active [put]
func (h *RBACHandler) SetRoleActive(c *gin.Context) {
	var req service.SetRoleActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	actor, ok := resolveActor(c, h.userService)
	if !ok {
		return
	}

	if err := h.rbacService.SetRoleActive(c.Request.Context(), actor, c.Param("role"), *req.Active); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"role": c.Param("role"), "active": *req.Active}))
}

// GetPermissions returns the catalog and all role assignments, reduced to
// the modules this installation can actually show (license × assignment)
// @Summary      Permission matrix
// @Tags         rbac
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.PermissionMatrix}
// @Router       /rbac/permissions [get]
func (h *RBACHandler) GetPermissions(c *gin.Context) {
	matrix, err := h.rbacService.PermissionMatrix(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, matrix))
}

// UpdateRolePermissions replaces a role's permission set and recomputes its
// module/subroute caches
// @Summary      Set role permissions
// @Tags         rbac
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        role     path      string                                true  "Role"
// @Param        payload  body      service.UpdateRolePermissionsRequest  true  "Permission ids"
// @Success      200      {object}  response.Response{data=service.ModuleAssignment}
// @Router       /rbac/permissions/{role} [put]
func (h *RBACHandler) UpdateRolePermissions(c *gin.Context) {
	var req service.UpdateRolePermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	actor, ok := resolveActor(c, h.userService)
	if !ok {
		return
	}

	assignment, err := h.rbacService.SetRolePermissions(c.Request.Context(), actor, c.Param("role"), req.Permissions)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, assignment))
}

// ListModuleAssignments returns the module/subroute cache for every role
func (h *RBACHandler) ListModuleAssignments(c *gin.Context) {
	assignments, err := h.rbacService.ModuleAssignments(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, assignments))
}

// GetModuleAssignment returns the module/subroute cache for one role
func (h *RBACHandler) GetModuleAssignment(c *gin.Context) {
	assignment, err := h.rbacService.ModuleAssignmentFor(c.Request.Context(), c.Param("role"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, assignment))
}

// OverrideModuleAssignment writes the module/subroute cache directly. This
// is an explicit operator override; the next permission write recomputes it.
// @Summary      Override role modules
// @Tags         rbac
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        role     path      string                            true  "Role"
// @Param        payload  body      service.UpdateRoleModulesRequest  true  "Module assignment"
// @Success      200      {object}  response.Response
// @Router       /rbac/modules/{role} [put]
func (h *RBACHandler) OverrideModuleAssignment(c *gin.Context) {
	var req service.UpdateRoleModulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	actor, ok := resolveActor(c, h.userService)
	if !ok {
		return
	}

	assignment := service.ModuleAssignment{
		AllowModules:   req.AllowModules,
		AllowSubroutes: req.AllowSubroutes,
	}
	if err := h.rbacService.OverrideModuleAssignment(c.Request.Context(), actor, c.Param("role"), assignment); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, assignment))
}

// MyModules returns the modules/subroutes the requester's dashboard may render
// @Summary      My modules
// @Tags         rbac
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.ModuleAssignment}
// @Router       /rbac/my-modules [get]
func (h *RBACHandler) MyModules(c *gin.Context) {
	role, _ := c.Get("userRole")
	roleStr, ok := role.(string)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.ErrorCode(http.StatusUnauthorized, "TOKEN_INVALID", "Role not found in context"))
		return
	}

	assignment, err := h.rbacService.MyModules(c.Request.Context(), roleStr)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, assignment))
}

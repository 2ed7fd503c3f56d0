package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type SettingsHandler struct {
	settingsService service.SettingsService
	userService     service.UserService
	auditService    service.AuditService
}

// NewSettingsHandler sets up the routing dependencies for settings endpoints
func NewSettingsHandler(settingsService service.SettingsService, userService service.UserService, auditService service.AuditService) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
		userService:     userService,
		auditService:    auditService,
	}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup.
// The raw settings surface can rewrite the licensing and permission rows
// directly; every write is audited.
func (h *SettingsHandler) RegisterRoutes(router *gin.RouterGroup) {
	settings := router.Group("/settings")
	settings.Use(middleware.RequireRole(model.RoleOwner, model.RoleAdmin))
	{
		settings.GET("", h.ListSettings)
		settings.GET("/:key", h.GetSetting)
		settings.PUT("/:key", h.UpdateSetting)
		settings.DELETE("/:key", h.DeleteSetting)
	}
}

type updateSettingRequest struct {
	Value string `json:"value" binding:"required"`
}

// ListSettings returns every settings row
// @Summary      List settings
// @Tags         settings
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]model.Setting}
// @Router       /settings [get]
func (h *SettingsHandler) ListSettings(c *gin.Context) {
	rows, err := h.settingsService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rows))
}

// GetSetting returns one settings row by key
// @Summary      Get setting
// @Tags         settings
// @Produce      json
// @Security     BearerAuth
// @Param        key  path      string  true  "Setting key"
// @Success      200  {object}  response.Response{data=model.Setting}
// @Failure      404  {object}  response.Response
// @Router       /settings/{key} [get]
func (h *SettingsHandler) GetSetting(c *gin.Context) {
	row, err := h.settingsService.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, row))
}

// UpdateSetting upserts one settings row. Writes are audited; the raw
// surface can change licensing and permission state.
// @Summary      Update setting
// @Tags         settings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        key      path      string                true  "Setting key"
// @Param        payload  body      updateSettingRequest  true  "Setting value"
// @Success      200      {object}  response.Response{data=model.Setting}
// @Router       /settings/{key} [put]
func (h *SettingsHandler) UpdateSetting(c *gin.Context) {
	var req updateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	actor, ok := resolveActor(c, h.userService)
	if !ok {
		return
	}

	row, err := h.settingsService.Set(c.Request.Context(), c.Param("key"), req.Value)
	if err != nil {
		respondError(c, err)
		return
	}

	h.auditService.Record(c.Request.Context(), &actor.ID, model.ActionUpdateSetting, row.Key, row.Key, nil)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, row))
}

// DeleteSetting removes one settings row
// @Summary      Delete setting
// @Tags         settings
// @Produce      json
// @Security     BearerAuth
// @Param        key  path      string  true  "Setting key"
// @Success      200  {object}  response.Response
// @Router       /settings/{key} [delete]
func (h *SettingsHandler) DeleteSetting(c *gin.Context) {
	actor, ok := resolveActor(c, h.userService)
	if !ok {
		return
	}

	key := c.Param("key")
	if err := h.settingsService.Delete(c.Request.Context(), key); err != nil {
		respondError(c, err)
		return
	}

	h.auditService.Record(c.Request.Context(), &actor.ID, model.ActionDeleteSetting, key, key, nil)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Setting deleted"))
}

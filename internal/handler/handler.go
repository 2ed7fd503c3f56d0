package handler

import (
	"net/http"

	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

// respondError maps service failures onto the response envelope. Taxonomy
// errors carry their own status and stable code; anything else is a 500.
func respondError(c *gin.Context, err error) {
	if apiErr, ok := service.AsAPIError(err); ok {
		c.JSON(apiErr.Status, response.ErrorCode(apiErr.Status, apiErr.Code, apiErr.Message))
		return
	}
	c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
}

// contextUserID returns the token subject stored by the auth middleware.
func contextUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("userID")
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// resolveActor loads the authenticated caller for service operations that
// need audit attribution or campus scoping.
func resolveActor(c *gin.Context, users service.UserService) (service.Actor, bool) {
	id, ok := contextUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.ErrorCode(http.StatusUnauthorized, "TOKEN_INVALID", "User ID not found in context"))
		return service.Actor{}, false
	}
	actor, err := users.Actor(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return service.Actor{}, false
	}
	return actor, true
}

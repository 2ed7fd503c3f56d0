package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/metrics"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService service.AuthService
	metrics     *metrics.Metrics
	loginLimit  gin.HandlerFunc
}

// NewAuthHandler sets up the routing dependencies for auth endpoints
func NewAuthHandler(authService service.AuthService, m *metrics.Metrics, loginLimit gin.HandlerFunc) *AuthHandler {
	if loginLimit == nil {
		loginLimit = func(c *gin.Context) { c.Next() }
	}
	return &AuthHandler{authService: authService, metrics: m, loginLimit: loginLimit}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	{
		auth.POST("/login", h.loginLimit, h.Login)
		auth.GET("/status", h.Status)
		auth.POST("/refresh", h.RefreshToken)
		auth.POST("/logout", h.Logout)
	}

	// Me route (authenticated — any valid token)
	router.GET("/me", middleware.RequireAuth(), h.GetMe)
}

// Login handles POST /auth/login to authenticate and return a token pair
// @Summary      Login
// @Description  Authenticates a user; the owner email branches into the bootstrap flow and may carry an ownerKey
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest  true  "Login Credentials"
// @Success      200      {object}  response.Response{data=service.AuthResponse}
// @Failure      401      {object}  response.Response
// @Failure      423      {object}  response.Response
// @Failure      428      {object}  response.Response
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		h.countLogin(err)
		respondError(c, err)
		return
	}
	h.countLogin(nil)

	// Set tokens as HttpOnly cookies
	middleware.SetTokenCookies(c, res.Token, res.RefreshToken)

	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

func (h *AuthHandler) countLogin(err error) {
	if h.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		if apiErr, ok := service.AsAPIError(err); ok {
			outcome = apiErr.Code
		}
	}
	h.metrics.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
}

// Status handles GET /auth/status, the public pre-login probe
// @Summary      Licensing status
// @Description  Reports whether setup completed, the licensed modules and whether any admin exists
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.StatusResponse}
// @Router       /auth/status [get]
func (h *AuthHandler) Status(c *gin.Context) {
	res, err := h.authService.Status(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// RefreshToken handles POST /auth/refresh to issue a new token pair
// @Summary      Refresh token
// @Description  Issues a new access and refresh token using a valid refresh token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RefreshTokenRequest  true  "Refresh Token"
// @Success      200      {object}  response.Response{data=service.AuthResponse}
// @Failure      401      {object}  response.Response
// @Router       /auth/refresh [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	// Try reading refresh_token from cookie first, fallback to body
	refreshToken, cookieErr := c.Cookie("refresh_token")
	if cookieErr != nil || refreshToken == "" {
		var req service.RefreshTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
			return
		}
		refreshToken = req.RefreshToken
	}

	res, err := h.authService.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.SetTokenCookies(c, res.Token, res.RefreshToken)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Logout handles POST /auth/logout to clear auth cookies. Tokens are not
// revoked server-side; logout is client-side discard.
func (h *AuthHandler) Logout(c *gin.Context) {
	middleware.ClearTokenCookies(c)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Logged out"))
}

// GetMe handles GET /me to return the current authenticated user
// @Summary      Get current user
// @Description  Returns the authenticated user's profile and permission set
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=object}
// @Failure      401  {object}  response.Response
// @Router       /me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	id, ok := contextUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.ErrorCode(http.StatusUnauthorized, "TOKEN_INVALID", "User ID not found in context"))
		return
	}

	user, perms, err := h.authService.Me(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if perms == nil {
		perms = []string{}
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"user":        user,
		"permissions": perms,
	}))
}

package middleware

import (
	"context"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"backend/internal/model"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// PermissionSource provides the current permission set for a role. Backed by
// the settings store; results are cached below with a short TTL.
type PermissionSource interface {
	RolePermissions(ctx context.Context, role string) ([]string, error)
}

var (
	jwtSecret  []byte
	permSource PermissionSource
)

// Init sets the access-token secret and the permission source for the
// auth middleware. Must be called once during startup wiring.
func Init(secret []byte, perms PermissionSource) {
	jwtSecret = secret
	permSource = perms
}

// SetTokenCookies sets access_token and refresh_token as HttpOnly cookies
func SetTokenCookies(c *gin.Context, accessToken, refreshToken string) {
	// Production (cross-origin): SameSiteNoneMode + Secure=true
	// Development (same-site):   SameSiteLaxMode  + Secure=false
	sameSite := http.SameSiteLaxMode
	secure := false
	if os.Getenv("GIN_MODE") == "release" {
		sameSite = http.SameSiteNoneMode
		secure = true
	}

	c.SetSameSite(sameSite)
	c.SetCookie("access_token", accessToken, 3600*24, "/", "", secure, true)
	c.SetCookie("refresh_token", refreshToken, 3600*24*7, "/", "", secure, true)
}

// ClearTokenCookies removes access_token and refresh_token cookies
func ClearTokenCookies(c *gin.Context) {
	sameSite := http.SameSiteLaxMode
	secure := false
	if os.Getenv("GIN_MODE") == "release" {
		sameSite = http.SameSiteNoneMode
		secure = true
	}

	c.SetSameSite(sameSite)
	c.SetCookie("access_token", "", -1, "/", "", secure, true)
	c.SetCookie("refresh_token", "", -1, "/", "", secure, true)
}

// bearerToken extracts the access token: cookie first, Authorization header
// fallback.
func bearerToken(c *gin.Context) (string, bool) {
	if tokenString, err := c.Cookie("access_token"); err == nil && tokenString != "" {
		return tokenString, true
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// authenticate validates the JWT and stores identity in the gin context.
func authenticate(c *gin.Context) (role string, ok bool) {
	tokenString, found := bearerToken(c)
	if !found {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorCode(http.StatusUnauthorized, "TOKEN_INVALID", "Authorization is missing"))
		return "", false
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		code := "TOKEN_INVALID"
		if err != nil && strings.Contains(err.Error(), "expired") {
			code = "TOKEN_EXPIRED"
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorCode(http.StatusUnauthorized, code, "Invalid token"))
		return "", false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorCode(http.StatusUnauthorized, "TOKEN_INVALID", "Invalid token claims"))
		return "", false
	}

	userRole, ok := claims["role"].(string)
	if !ok {
		c.AbortWithStatusJSON(http.StatusForbidden, response.ErrorCode(http.StatusForbidden, "FORBIDDEN", "Role not found in token"))
		return "", false
	}

	c.Set("userID", claims["sub"])
	c.Set("userRole", userRole)
	return userRole, true
}

// RequireRole validates the JWT token and checks if the user's role exists
// in the allowedRoles list
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, ok := authenticate(c)
		if !ok {
			return
		}

		for _, role := range allowedRoles {
			if userRole == role {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, response.ErrorCode(http.StatusForbidden, "FORBIDDEN", "Access denied: insufficient permissions"))
	}
}

// RequireAuth only validates the token, accepting any fixed role.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := authenticate(c); ok {
			c.Next()
		}
	}
}

// --- Permission-based middleware ---

// permCacheEntry stores cached permission ids for a role with TTL
type permCacheEntry struct {
	perms     []string
	expiresAt time.Time
}

var (
	permCache    sync.Map // role -> permCacheEntry
	permCacheTTL = 5 * time.Minute
)

// RequirePermission validates the JWT and checks that the caller's role
// carries every required permission id. The owner bypasses permission
// checks entirely.
func RequirePermission(requiredPerms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, ok := authenticate(c)
		if !ok {
			return
		}

		if userRole == model.RoleOwner {
			c.Next()
			return
		}

		userPerms, err := permissionsForRole(c.Request.Context(), userRole)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify permissions"))
			return
		}

		permSet := make(map[string]bool, len(userPerms))
		for _, p := range userPerms {
			permSet[p] = true
		}

		for _, required := range requiredPerms {
			if !permSet[required] {
				c.AbortWithStatusJSON(http.StatusForbidden, response.ErrorCode(http.StatusForbidden, "FORBIDDEN", "Access denied: missing permission '"+required+"'"))
				return
			}
		}

		c.Next()
	}
}

// permissionsForRole returns cached or settings-fetched permission ids
func permissionsForRole(ctx context.Context, role string) ([]string, error) {
	if entry, ok := permCache.Load(role); ok {
		cached := entry.(permCacheEntry)
		if time.Now().Before(cached.expiresAt) {
			return cached.perms, nil
		}
	}

	perms, err := permSource.RolePermissions(ctx, role)
	if err != nil {
		return nil, err
	}

	permCache.Store(role, permCacheEntry{
		perms:     perms,
		expiresAt: time.Now().Add(permCacheTTL),
	})

	return perms, nil
}

// ClearPermissionCache removes cached permissions for a specific role (or
// all roles if empty). Called whenever a role's permission set changes.
func ClearPermissionCache(role string) {
	if role == "" {
		permCache.Range(func(key, _ interface{}) bool {
			permCache.Delete(key)
			return true
		})
	} else {
		permCache.Delete(role)
	}
}

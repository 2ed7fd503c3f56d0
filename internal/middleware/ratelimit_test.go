package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedRouter(t *testing.T, cfg RateLimitConfig) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	router := gin.New()
	router.POST("/login", RateLimit(cfg, rdb), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router, mr
}

func doLogin(router *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.1:50000"
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimitAllowsBurstThenBlocks(t *testing.T) {
	cfg := RateLimitConfig{
		Capacity:       3,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		Prefix:         "ratelimit:test",
	}
	router, _ := newLimitedRouter(t, cfg)

	for i := 0; i < 3; i++ {
		w := doLogin(router)
		require.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
	}

	w := doLogin(router)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "TOO_MANY_REQUESTS")
}

func TestRateLimitRefills(t *testing.T) {
	cfg := RateLimitConfig{
		Capacity:       1,
		RefillTokens:   1,
		RefillInterval: time.Second,
		TTL:            10 * time.Minute,
		Prefix:         "ratelimit:test",
	}
	router, _ := newLimitedRouter(t, cfg)

	require.Equal(t, http.StatusOK, doLogin(router).Code)
	require.Equal(t, http.StatusTooManyRequests, doLogin(router).Code)

	// One interval later a token is back.
	time.Sleep(1100 * time.Millisecond)
	assert.Equal(t, http.StatusOK, doLogin(router).Code)
}

func TestRateLimitFailsOpenWithoutRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/login", RateLimit(DefaultLoginRateLimit(), nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, doLogin(router).Code)
	}
}

func TestRateLimitFailsOpenOnRedisError(t *testing.T) {
	cfg := DefaultLoginRateLimit()
	router, mr := newLimitedRouter(t, cfg)

	// Kill the backend; logins must still pass.
	mr.Close()
	assert.Equal(t, http.StatusOK, doLogin(router).Code)
}

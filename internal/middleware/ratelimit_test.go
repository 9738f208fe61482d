package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRateLimitedEngine(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(rl.Middleware())
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return engine
}

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3)
	engine := newRateLimitedEngine(rl)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	engine := newRateLimitedEngine(rl)

	var lastCode int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		lastCode = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, lastCode)
}

func TestRateLimiter_TracksClientsIndependently(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	engine := newRateLimitedEngine(rl)

	reqA := httptest.NewRequest(http.MethodGet, "/", nil)
	reqA.RemoteAddr = "10.0.0.3:1234"
	recA := httptest.NewRecorder()
	engine.ServeHTTP(recA, reqA)
	require.Equal(t, http.StatusOK, recA.Code)

	reqB := httptest.NewRequest(http.MethodGet, "/", nil)
	reqB.RemoteAddr = "10.0.0.4:1234"
	recB := httptest.NewRecorder()
	engine.ServeHTTP(recB, reqB)
	require.Equal(t, http.StatusOK, recB.Code)
}

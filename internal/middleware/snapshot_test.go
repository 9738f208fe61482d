package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestSnapshotCapture_SkipsNonAPIPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	coord := newTestCoordinator()
	defer coord.Stop(time.Second)
	engine.Use(SnapshotCapture(coord, "1.0.0", "test"))
	engine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	require.NotPanics(t, func() { engine.ServeHTTP(rec, req) })
}

func TestSnapshotCapture_RedactsAuthorizationHeaderOnAPIRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	coord := newTestCoordinator()
	defer coord.Stop(time.Second)
	engine.Use(SnapshotCapture(coord, "1.0.0", "test"))
	engine.POST("/api/v1/widgets", func(c *gin.Context) {
		c.Header("Content-Type", "application/json")
		c.JSON(http.StatusCreated, gin.H{"id": 1})
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/widgets", strings.NewReader(`{"name":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer secret-token")
	rec := httptest.NewRecorder()
	require.NotPanics(t, func() { engine.ServeHTTP(rec, req) })
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestRedactHeaders_MasksSensitiveKeys(t *testing.T) {
	out := redactHeaders(map[string][]string{
		"Authorization": {"Bearer abc"},
		"X-Api-Key":     {"key-123"},
		"X-Request-ID":  {"req-1"},
	})
	require.Equal(t, "[redacted]", out["Authorization"])
	require.Equal(t, "[redacted]", out["X-Api-Key"])
	require.Equal(t, "req-1", out["X-Request-ID"])
}

func TestFlattenQuery_TakesFirstValuePerKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?a=1&a=2&b=3", nil)
	out := flattenQuery(req.URL.Query())
	require.Equal(t, "1", out["a"])
	require.Equal(t, "3", out["b"])
}

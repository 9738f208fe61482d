package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newSecurityHeadersEngine(isProduction bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(SecurityHeaders(isProduction))
	engine.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return engine
}

func TestSecurityHeaders_SetsFixedHeaderSet(t *testing.T) {
	engine := newSecurityHeadersEngine(false)
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")
	require.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestSecurityHeaders_AddsHSTSInProduction(t *testing.T) {
	engine := newSecurityHeadersEngine(true)
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=31536000")
}

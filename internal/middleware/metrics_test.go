package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestMetricsCapture_SkipsNonAPIPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	coord := newTestCoordinator()
	defer coord.Stop(time.Second)
	engine.Use(MetricsCapture(coord))
	engine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	require.NotPanics(t, func() { engine.ServeHTTP(rec, req) })
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsCapture_RecordsAPIRequestWithoutBlockingResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	coord := newTestCoordinator()
	defer coord.Stop(time.Second)
	engine.Use(MetricsCapture(coord))
	engine.GET("/api/v1/widgets", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/widgets", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestMetricsCapture_PromotesErrorStatusWhenHandlerAttachesError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	coord := newTestCoordinator()
	defer coord.Stop(time.Second)
	engine.Use(MetricsCapture(coord))
	engine.GET("/api/v1/widgets", func(c *gin.Context) {
		c.Error(http.ErrBodyNotAllowed)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/widgets", nil)
	rec := httptest.NewRecorder()
	require.NotPanics(t, func() { engine.ServeHTTP(rec, req) })
}

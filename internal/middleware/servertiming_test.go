package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestServerTiming_RendersPhasesOnHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(ServerTiming())
	engine.GET("/ping", func(c *gin.Context) {
		RecordPhase(c, "db", 5*time.Millisecond)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	header := rec.Header().Get("Server-Timing")
	require.Contains(t, header, "db;dur=")
	require.Contains(t, header, "total;dur=")
}

func TestRecordPhase_NoopWhenRecorderMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/ping", func(c *gin.Context) {
		RecordPhase(c, "db", 5*time.Millisecond)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	require.NotPanics(t, func() { engine.ServeHTTP(rec, req) })
}

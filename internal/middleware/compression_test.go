package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newCompressionEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(Compression())
	engine.GET("/data", func(c *gin.Context) {
		c.String(http.StatusOK, strings.Repeat("hello world ", 50))
	})
	return engine
}

func TestCompression_GzipsWhenAcceptEncodingPresent(t *testing.T) {
	engine := newCompressionEngine()
	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	reader, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	decompressed, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Contains(t, string(decompressed), "hello world")
}

func TestCompression_SkipsWhenClientDoesNotAcceptGzip(t *testing.T) {
	engine := newCompressionEngine()
	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Empty(t, rec.Header().Get("Content-Encoding"))
	require.Contains(t, rec.Body.String(), "hello world")
}

func TestCompression_SkipsEventStreamResponses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(Compression())
	engine.GET("/stream", func(c *gin.Context) {
		c.String(http.StatusOK, "data: tick\n\n")
	})

	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Accept", "text/event-stream")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Empty(t, rec.Header().Get("Content-Encoding"))
}

package middleware

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/obsplane/observability/internal/models"
	"github.com/obsplane/observability/internal/pipeline"
)

const apiV1Prefix = "/api/v1"

// responseSizeWriter counts bytes written to the response so a metric can
// report response size even when the handler never set Content-Length.
type responseSizeWriter struct {
	gin.ResponseWriter
	written int
}

func (w *responseSizeWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

// MetricsCapture records one RawMetric per /api/v1 request and forwards it
// to the pipeline coordinator's bounded metric channel.
func MetricsCapture(coord *pipeline.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.HasPrefix(c.Request.URL.Path, apiV1Prefix) {
			c.Next()
			return
		}

		start := time.Now()
		var requestSize *int
		if c.Request.ContentLength >= 0 {
			size := int(c.Request.ContentLength)
			requestSize = &size
		} else if c.Request.Body != nil {
			body, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
			size := len(body)
			requestSize = &size
		}

		sizeWriter := &responseSizeWriter{ResponseWriter: c.Writer}
		c.Writer = sizeWriter

		c.Next()

		status := c.Writer.Status()
		if len(c.Errors) > 0 && status < 500 {
			status = 500
		}
		var responseSize *int
		if raw := c.Writer.Header().Get("Content-Length"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				responseSize = &n
			}
		}
		if responseSize == nil {
			written := sizeWriter.written
			responseSize = &written
		}

		coord.EmitMetric(models.RawMetric{
			Endpoint:          c.FullPath(),
			LatencyMs:         int(time.Since(start).Milliseconds()),
			Status:            status,
			TimestampMs:       start.UnixMilli(),
			RequestSizeBytes:  requestSize,
			ResponseSizeBytes: responseSize,
		})
	}
}

package middleware

import (
	"bytes"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/obsplane/observability/internal/auth"
	"github.com/obsplane/observability/internal/models"
	"github.com/obsplane/observability/internal/pipeline"
)

const maxSnapshotBodyChars = 10000

var redactedHeaders = map[string]bool{
	"authorization": true,
	"cookie":        true,
	"x-api-key":     true,
}

// bodyCaptureWriter buffers the response body so SnapshotCapture can inspect
// it after the handler runs, while still writing through to the real client.
type bodyCaptureWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	if w.buf.Len() < maxSnapshotBodyChars {
		w.buf.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

// SnapshotCapture clones the request/response pair for /api/v1 traffic and
// hands it to the pipeline coordinator on a best-effort, non-blocking path;
// persistence failures downstream are logged, never surfaced to the client.
func SnapshotCapture(coord *pipeline.Coordinator, version, environment string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.HasPrefix(c.Request.URL.Path, apiV1Prefix) {
			c.Next()
			return
		}

		start := time.Now()
		headers := redactHeaders(c.Request.Header)
		query := flattenQuery(c.Request.URL.Query())

		var body string
		if c.Request.Body != nil && isJSONContentType(c.Request.Header.Get("Content-Type")) {
			raw, _ := io.ReadAll(io.LimitReader(c.Request.Body, maxSnapshotBodyChars))
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
			body = string(raw)
		}

		capture := &bodyCaptureWriter{ResponseWriter: c.Writer}
		c.Writer = capture

		c.Next()

		responseBody := ""
		if isJSONContentType(c.Writer.Header().Get("Content-Type")) && capture.buf.Len() <= maxSnapshotBodyChars {
			responseBody = capture.buf.String()
		}

		var userID *int
		if uid, ok := auth.UserID(c); ok {
			userID = &uid
		}

		coord.EmitSnapshot(models.RequestSnapshot{
			Method:          c.Request.Method,
			Path:            c.Request.URL.Path,
			Query:           query,
			Headers:         headers,
			Body:            body,
			UserID:          userID,
			Version:         version,
			Environment:     environment,
			ResponseStatus:  c.Writer.Status(),
			ResponseHeaders: redactHeaders(c.Writer.Header()),
			ResponseBody:    responseBody,
			DurationMs:      int(time.Since(start).Milliseconds()),
			Geo:             Geo(c),
		})
	}
}

func isJSONContentType(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json")
}

func redactHeaders(h map[string][]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) == 0 {
			continue
		}
		if redactedHeaders[strings.ToLower(k)] {
			out[k] = "[redacted]"
			continue
		}
		out[k] = v[0]
	}
	return out
}

func flattenQuery(q url.Values) map[string]string {
	out := make(map[string]string, len(q))
	for k, v := range q {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

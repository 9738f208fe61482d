package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/obsplane/observability/internal/apperr"
)

const (
	jsonBodyCap   int64 = 1 * 1024 * 1024
	formBodyCap   int64 = 10 * 1024 * 1024
	binaryBodyCap int64 = 50 * 1024 * 1024
	defaultBodyCap int64 = 1 * 1024 * 1024
)

var sizeLimitedMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// BodySizeLimit enforces a declared-content-type cap on POST/PUT/PATCH/DELETE
// bodies, rejecting with a structured 413 before the handler ever reads the
// body. A request without Content-Length passes through untouched.
func BodySizeLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !sizeLimitedMethods[c.Request.Method] {
			c.Next()
			return
		}
		contentLength := c.Request.ContentLength
		if contentLength < 0 {
			c.Next()
			return
		}

		limit := capForContentType(c.GetHeader("Content-Type"))
		if contentLength > limit {
			apperr.Abort(c, apperr.PayloadTooLarge(contentLength, limit))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

func capForContentType(contentType string) int64 {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "application/json"):
		return jsonBodyCap
	case strings.Contains(ct, "application/x-www-form-urlencoded"), strings.Contains(ct, "multipart/form-data"):
		return formBodyCap
	case strings.HasPrefix(ct, "image/"), strings.HasPrefix(ct, "video/"), strings.HasPrefix(ct, "audio/"), strings.Contains(ct, "application/octet-stream"):
		return binaryBodyCap
	default:
		return defaultBodyCap
	}
}

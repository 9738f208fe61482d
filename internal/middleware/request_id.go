// Package middleware implements the ordered request pipeline: request ID,
// favicon/404 short-circuits, CORS, CSRF, locale, server-timing, geo,
// body-size limiting, security headers, metrics/snapshot/access-log capture.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the header name carrying the correlation ID.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the Gin context key the ID is stored under.
	RequestIDKey = "request_id"
)

// RequestID assigns (or reuses) a correlation ID for the request and echoes
// it back on the response so upstream callers can tie their trace to ours.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// GetRequestID reads the correlation ID set by RequestID.
func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(RequestIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

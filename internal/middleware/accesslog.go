package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/obsplane/observability/internal/models"
	"github.com/obsplane/observability/internal/pipeline"
)

// AccessLog emits one structured log line per request, through the same
// pipeline coordinator that persists logs emitted by application code.
func AccessLog(coord *pipeline.Coordinator, version, environment string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attributes := map[string]any{
			"method":     c.Request.Method,
			"url":        c.Request.URL.String(),
			"path":       c.Request.URL.Path,
			"query":      flattenQuery(c.Request.URL.Query()),
			"geo":        Geo(c),
			"status":     c.Writer.Status(),
			"stage":      environment,
			"version":    version,
			"durationMs": time.Since(start).Milliseconds(),
		}

		level := models.LevelInfo
		if c.Writer.Status() >= 500 {
			level = models.LevelError
		} else if c.Writer.Status() >= 400 {
			level = models.LevelWarn
		}

		coord.EmitLog(models.Log{
			Source:     "http",
			Level:      level,
			Message:    c.Request.Method + " " + c.Request.URL.Path,
			Attributes: attributes,
		})
	}
}

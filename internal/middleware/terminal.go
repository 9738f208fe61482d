package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/obsplane/observability/internal/apperr"
)

// NotFound is installed as the engine's NoRoute handler; it renders the
// standard error envelope instead of Gin's bare 404 body.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		apperr.Abort(c, apperr.NotFound(c.Request.URL.Path))
	}
}

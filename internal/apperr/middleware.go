package apperr

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/obsplane/observability/internal/logger"
)

const productionEnvKey = "app_is_production"

// ErrorHandler renders any error attached to the Gin context via c.Error as
// the standard envelope. Background-job failures never reach this path; they
// are logged and retried by the job fabric instead (§4.C).
func ErrorHandler(isProduction bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(productionEnvKey, isProduction)
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		appErr, ok := err.(*Error)
		if !ok {
			appErr = Fatal(err)
		}
		logError(c, appErr)
		if c.Writer.Written() {
			// Abort already sent this error's envelope.
			return
		}
		c.JSON(appErr.StatusCode, appErr.ToEnvelope(!isProduction))
	}
}

// Recovery turns a panic in a downstream handler into a 500 envelope instead
// of crashing the process.
func Recovery(isProduction bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				appErr := Fatal(panicToError(r))
				logError(c, appErr)
				c.AbortWithStatusJSON(http.StatusInternalServerError, appErr.ToEnvelope(!isProduction))
			}
		}()
		c.Next()
	}
}

func panicToError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &Error{Message: "panic", Cause: nil, Name: "PANIC"}
}

func logError(c *gin.Context, appErr *Error) {
	ev := logger.HTTP().Error()
	if appErr.StatusCode < 500 {
		ev = logger.HTTP().Warn()
	}
	ev.Str("name", appErr.Name).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("status", appErr.StatusCode).
		Msg(appErr.Message)
}

// Abort attaches err to the context and sends the error envelope immediately.
func Abort(c *gin.Context, err *Error) {
	c.Error(err)
	isProd, _ := c.Get(productionEnvKey)
	prod, _ := isProd.(bool)
	c.AbortWithStatusJSON(err.StatusCode, err.ToEnvelope(!prod))
}

// Handle attaches err so ErrorHandler renders it after the handler returns.
func Handle(c *gin.Context, err error) {
	if appErr, ok := err.(*Error); ok {
		c.Error(appErr)
		return
	}
	c.Error(Fatal(err))
}

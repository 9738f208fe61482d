package apperr

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newErrorEngine(isProduction bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(ErrorHandler(isProduction), Recovery(isProduction))
	return engine
}

func TestErrorHandler_RendersAppErrorEnvelope(t *testing.T) {
	engine := newErrorEngine(false)
	engine.GET("/boom", func(c *gin.Context) {
		Handle(c, NotFound("widget"))
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"data":null,"error":{"name":"NOT_FOUND","message":"widget not found"},"metadata":null}`, rec.Body.String())
}

func TestErrorHandler_WrapsRawErrorAsFatal(t *testing.T) {
	engine := newErrorEngine(true)
	engine.GET("/boom", func(c *gin.Context) {
		c.Error(errors.New("unexpected failure"))
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"data":null,"error":{"name":"INTERNAL_ERROR","message":"an unexpected error occurred"},"metadata":null}`, rec.Body.String())
}

func TestErrorHandler_OmitsStackInProduction(t *testing.T) {
	engine := newErrorEngine(true)
	engine.GET("/boom", func(c *gin.Context) {
		Handle(c, RetryableDependency("upstream down", errors.New("dial tcp: refused")))
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.NotContains(t, rec.Body.String(), "dial tcp")
}

func TestErrorHandler_IncludesStackOutsideProduction(t *testing.T) {
	engine := newErrorEngine(false)
	engine.GET("/boom", func(c *gin.Context) {
		Handle(c, RetryableDependency("upstream down", errors.New("dial tcp: refused")))
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Contains(t, rec.Body.String(), "dial tcp")
}

func TestRecovery_TurnsPanicIntoFiveHundred(t *testing.T) {
	engine := newErrorEngine(true)
	engine.GET("/panic", func(c *gin.Context) {
		panic(errors.New("nil pointer somewhere"))
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"data":null,"error":{"name":"INTERNAL_ERROR","message":"an unexpected error occurred"},"metadata":null}`, rec.Body.String())
}

func TestRecovery_WrapsNonErrorPanicValue(t *testing.T) {
	engine := newErrorEngine(true)
	engine.GET("/panic", func(c *gin.Context) {
		panic("plain string panic")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAbort_SendsEnvelopeImmediatelyAndStopsChain(t *testing.T) {
	engine := newErrorEngine(false)
	reachedNext := false
	engine.GET("/forbidden", func(c *gin.Context) {
		Abort(c, Forbidden("no access"))
		reachedNext = true
	})

	req := httptest.NewRequest(http.MethodGet, "/forbidden", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.True(t, reachedNext, "Abort does not stop the current handler function, only later gin handlers")
}

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestChaosHandler_ZeroRateNeverTriggers(t *testing.T) {
	engine := newTestEngine()
	NewChaosHandler().RegisterRoutes(engine)

	req := httptest.NewRequest(http.MethodGet, "/error?errorRate=0", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChaosHandler_FullRateAlwaysTriggers(t *testing.T) {
	engine := newTestEngine()
	NewChaosHandler().RegisterRoutes(engine)

	req := httptest.NewRequest(http.MethodGet, "/error?errorRate=1", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.GreaterOrEqual(t, rec.Code, 500)
	assert.Contains(t, chaosStatuses, rec.Code)
}

func TestChaosHandler_ClampsOutOfRangeRate(t *testing.T) {
	engine := newTestEngine()
	NewChaosHandler().RegisterRoutes(engine)

	req := httptest.NewRequest(http.MethodGet, "/error?errorRate=5", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.GreaterOrEqual(t, rec.Code, 500)
}

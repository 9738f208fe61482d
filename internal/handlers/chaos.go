package handlers

import (
	"math/rand"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/obsplane/observability/internal/apperr"
)

var chaosStatuses = []int{500, 502, 503, 504}

// ChaosHandler serves the §6 GET /error endpoint used to exercise error
// handling and alerting paths in downstream systems.
type ChaosHandler struct{}

// NewChaosHandler constructs a ChaosHandler.
func NewChaosHandler() *ChaosHandler {
	return &ChaosHandler{}
}

// RegisterRoutes mounts GET /error under router.
func (h *ChaosHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/error", h.Trigger)
}

// Trigger fails with probability errorRate (default 0), picking uniformly
// among {500, 502, 503, 504} when it does.
func (h *ChaosHandler) Trigger(c *gin.Context) {
	rate := 0.0
	if raw := c.Query("errorRate"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			rate = parsed
		}
	}
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}

	if rand.Float64() < rate {
		status := chaosStatuses[rand.Intn(len(chaosStatuses))]
		chaosErr := apperr.RetryableDependency("chaos endpoint triggered a simulated failure", nil)
		chaosErr.StatusCode = status
		apperr.Abort(c, chaosErr)
		return
	}
	respondData(c, 200, gin.H{"triggered": false})
}

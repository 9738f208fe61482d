package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/obsplane/observability/internal/apperr"
	"github.com/obsplane/observability/internal/cache"
	"github.com/obsplane/observability/internal/db"
	"github.com/obsplane/observability/internal/models"
)

// unhealthyHeartbeatAge is the §4.E threshold past which the most recent
// worker heartbeat is treated as stale.
const unhealthyHeartbeatAge = 300 * time.Second

// workerStatsCacheTTL bounds how stale a cached heartbeat row may be before
// the rollup falls back to the database; shorter than unhealthyHeartbeatAge
// so a flapping worker is never masked by a stale cache hit.
const workerStatsCacheTTL = 10 * time.Second

// HealthHandler serves the §4.E health rollup.
type HealthHandler struct {
	sqlDB       *sql.DB
	workerStats *db.Gateway
	cache       *cache.Cache
	mode        models.WorkerMode
}

// NewHealthHandler binds the collaborators the rollup needs.
func NewHealthHandler(sqlDB *sql.DB, workerStats *db.Gateway, ca *cache.Cache, mode models.WorkerMode) *HealthHandler {
	return &HealthHandler{sqlDB: sqlDB, workerStats: workerStats, cache: ca, mode: mode}
}

// RegisterRoutes mounts GET /health.
func (h *HealthHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/health", h.Get)
}

type healthResult struct {
	Status       string `json:"status"`
	Database     string `json:"database"`
	Worker       string `json:"worker"`
	HeartbeatAge *int   `json:"heartbeatAgeSeconds,omitempty"`
}

func (h *HealthHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	var dbErr error
	var workerErr error
	var workerRow map[string]any
	done := make(chan struct{}, 2)

	go func() {
		dbErr = db.HealthPing(ctx, h.sqlDB)
		done <- struct{}{}
	}()
	go func() {
		cacheKey := cache.WorkerStatsKey(string(h.mode))
		if hit, _ := h.cache.Get(ctx, cacheKey, &workerRow); hit {
			done <- struct{}{}
			return
		}
		workerRow, workerErr = h.workerStats.GetFirst(ctx, db.ListParams{
			OrderBy: "last_heartbeat", Order: "desc",
			Filters: map[string]any{"mode__eq": string(h.mode)},
		})
		if workerErr == nil && workerRow != nil {
			_ = h.cache.Set(ctx, cacheKey, workerRow, workerStatsCacheTTL)
		}
		done <- struct{}{}
	}()
	<-done
	<-done

	dbHealthy := dbErr == nil
	workerHealthy := true
	var heartbeatAge *int
	if workerErr == nil && workerRow != nil {
		if last, ok := heartbeatTime(workerRow["last_heartbeat"]); ok {
			age := time.Since(last)
			seconds := int(age.Seconds())
			heartbeatAge = &seconds
			workerHealthy = age < unhealthyHeartbeatAge
		}
	} else if workerRow == nil {
		workerHealthy = false
	}

	result := healthResult{Database: statusLabel(dbHealthy), Worker: statusLabel(workerHealthy), HeartbeatAge: heartbeatAge}
	status := http.StatusOK
	switch {
	case !dbHealthy:
		result.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	case !workerHealthy:
		result.Status = "degraded"
	default:
		result.Status = "healthy"
	}

	c.JSON(status, apperr.Data(result))
}

// heartbeatTime reads last_heartbeat off a WorkerStats row, which arrives as
// a time.Time when read fresh from the Gateway but as an RFC3339 string when
// read back from the cache's JSON round trip.
func heartbeatTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		return parsed, err == nil
	default:
		return time.Time{}, false
	}
}

func statusLabel(healthy bool) string {
	if healthy {
		return "healthy"
	}
	return "unhealthy"
}

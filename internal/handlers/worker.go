package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obsplane/observability/internal/apperr"
	"github.com/obsplane/observability/internal/db"
	"github.com/obsplane/observability/internal/jobs"
	"github.com/obsplane/observability/internal/models"
)

// WorkerHandler serves the operator-facing §4.E worker HTTP surface. It is
// the only entry point by which the API process may enqueue a job when the
// fabric is configured in local mode, since a local Queue's channels are not
// shared across processes.
type WorkerHandler struct {
	registry    *jobs.Registry
	queue       jobs.Queue
	scheduler   jobs.Scheduler
	workerStats *db.Gateway
	sqlDB       *sql.DB
	mode        models.WorkerMode
}

// NewWorkerHandler binds the job-fabric collaborators the surface exposes.
func NewWorkerHandler(registry *jobs.Registry, queue jobs.Queue, scheduler jobs.Scheduler, workerStats *db.Gateway, sqlDB *sql.DB, mode models.WorkerMode) *WorkerHandler {
	return &WorkerHandler{
		registry: registry, queue: queue, scheduler: scheduler,
		workerStats: workerStats, sqlDB: sqlDB, mode: mode,
	}
}

// RegisterRoutes mounts the worker surface under router.
func (h *WorkerHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/worker/jobs", h.ListJobTypes)
	router.GET("/worker/queue/stats", h.QueueStats)
	router.GET("/worker/scheduler/jobs", h.SchedulerJobs)
	router.GET("/worker/stats", h.WorkerStats)
	router.POST("/jobs/enqueue", h.Enqueue)
	router.GET("/health", h.Health)
}

type jobDefView struct {
	Type               string `json:"type"`
	HumanName          string `json:"humanName"`
	Description        string `json:"description"`
	Category           string `json:"category"`
	DefaultMaxAttempts int    `json:"defaultMaxAttempts"`
}

func (h *WorkerHandler) ListJobTypes(c *gin.Context) {
	defs := h.registry.List()
	views := make([]jobDefView, 0, len(defs))
	for _, def := range defs {
		views = append(views, jobDefView{
			Type: def.Type, HumanName: def.HumanName, Description: def.Description,
			Category: def.Category, DefaultMaxAttempts: def.DefaultMaxAttempts,
		})
	}
	respondData(c, http.StatusOK, views)
}

func (h *WorkerHandler) QueueStats(c *gin.Context) {
	stats, err := h.queue.Stats(c.Request.Context())
	if err != nil {
		apperr.Handle(c, apperr.RetryableDependency("failed to read queue stats", err))
		return
	}
	respondData(c, http.StatusOK, stats)
}

func (h *WorkerHandler) SchedulerJobs(c *gin.Context) {
	respondData(c, http.StatusOK, h.scheduler.List())
}

func (h *WorkerHandler) WorkerStats(c *gin.Context) {
	row, err := h.workerStats.GetFirst(c.Request.Context(), db.ListParams{
		OrderBy: "last_heartbeat", Order: "desc",
		Filters: map[string]any{"mode__eq": string(h.mode)},
	})
	if err != nil {
		apperr.Handle(c, apperr.RetryableDependency("failed to read worker stats", err))
		return
	}
	if row == nil {
		respondData(c, http.StatusOK, nil)
		return
	}
	respondData(c, http.StatusOK, row)
}

type enqueueRequest struct {
	Type    string         `json:"type" binding:"required"`
	Payload map[string]any `json:"payload"`
}

func (h *WorkerHandler) Enqueue(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, apperr.Validation(bindIssues(err)))
		return
	}
	if _, ok := h.registry.Lookup(req.Type); !ok {
		apperr.Abort(c, apperr.Validation([]apperr.Issue{{
			Code: "unknown_job_type", Path: "type", Message: "unrecognized job type " + req.Type,
		}}))
		return
	}

	jobID, err := h.queue.Enqueue(c.Request.Context(), req.Type, req.Payload)
	if err != nil {
		apperr.Handle(c, apperr.RetryableDependency("failed to enqueue job", err))
		return
	}
	respondData(c, http.StatusAccepted, gin.H{"jobId": jobID})
}

// Health on the worker surface pings the database only: it answers healthy
// or fails with a retryable-dependency error, and unlike the API process's
// GET /health it reads no worker heartbeat and reports no degraded state.
func (h *WorkerHandler) Health(c *gin.Context) {
	if err := db.HealthPing(c.Request.Context(), h.sqlDB); err != nil {
		apperr.Abort(c, apperr.RetryableDependency("database unreachable", err))
		return
	}
	respondData(c, http.StatusOK, gin.H{"status": "healthy"})
}

package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/obsplane/observability/internal/apperr"
	"github.com/obsplane/observability/internal/db"
)

// logStreamPollInterval is how often GET /logs/stream checks for new rows.
const logStreamPollInterval = 2 * time.Second

// LogsHandler serves GET /logs and its SSE companion.
type LogsHandler struct {
	logs *db.Gateway
}

// NewLogsHandler binds the logs Gateway.
func NewLogsHandler(logs *db.Gateway) *LogsHandler {
	return &LogsHandler{logs: logs}
}

// RegisterRoutes mounts the logs routes under router.
func (h *LogsHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/logs", h.List)
	router.GET("/logs/stream", h.Stream)
}

var logShortcuts = shortcutFilters{
	"source": "source__eq",
	"level":  "level__eq",
}

func (h *LogsHandler) List(c *gin.Context) {
	params := parseListParams(c, logShortcuts)
	page, err := h.logs.List(c.Request.Context(), params)
	if err != nil {
		apperr.Handle(c, apperr.RetryableDependency("failed to list logs", err))
		return
	}
	respondList(c, page.Rows, params.Limit, params.Offset, page.Total)
}

// Stream writes the last 50 log rows as one "snapshot" event, then polls for
// newer rows every logStreamPollInterval and emits each batch as "append"
// until the client disconnects.
func (h *LogsHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()

	page, err := h.logs.List(ctx, db.ListParams{
		Limit: 50, OrderBy: "id", Order: "desc",
	})
	if err != nil {
		apperr.Abort(c, apperr.RetryableDependency("failed to load initial log snapshot", err))
		return
	}
	lastSeenID := 0
	for _, row := range page.Rows {
		if id := db.RowID(row); id > lastSeenID {
			lastSeenID = id
		}
	}
	c.SSEvent("snapshot", page.Rows)
	c.Writer.Flush()

	ticker := time.NewTicker(logStreamPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			newer, err := h.logs.List(ctx, db.ListParams{
				OrderBy: "id", Order: "asc", Limit: 1000,
				Filters: map[string]any{"id__gt": lastSeenID},
			})
			if err != nil || len(newer.Rows) == 0 {
				continue
			}
			for _, row := range newer.Rows {
				if id := db.RowID(row); id > lastSeenID {
					lastSeenID = id
				}
			}
			c.SSEvent("append", newer.Rows)
			c.Writer.Flush()
		}
	}
}

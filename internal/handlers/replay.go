package handlers

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/obsplane/observability/internal/apperr"
	"github.com/obsplane/observability/internal/db"
)

// blockedReplayPaths are the snapshot paths §4.E forbids replaying, to avoid
// a replay triggering another replay, a metrics scrape, or a log read.
var blockedReplayPaths = map[string]bool{
	"/replay": true, "/metrics": true, "/logs": true,
}

// excludedReplayHeaders are stripped from the outbound request; the executor
// injects its own X-Internal-Replay marker instead of forwarding the
// caller's credentials.
var excludedReplayHeaders = map[string]bool{
	"authorization": true, "cookie": true, "x-api-key": true, "host": true,
}

var replayableMethods = map[string]bool{
	http.MethodGet: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodPatch: true, http.MethodDelete: true, http.MethodHead: true,
}

// ReplayHandler serves the captured-snapshot list/get routes and the replay
// executor that re-issues a snapshot against the configured base URL.
type ReplayHandler struct {
	snapshots *db.Gateway
	baseURL   string
	client    *http.Client
}

// NewReplayHandler binds the snapshot Gateway and the base URL replayed
// requests are issued against.
func NewReplayHandler(snapshots *db.Gateway, baseURL string) *ReplayHandler {
	return &ReplayHandler{
		snapshots: snapshots,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// RegisterRoutes mounts the replay routes under router.
func (h *ReplayHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/replay", h.List)
	router.GET("/replay/:id", h.Get)
	router.POST("/replay/:id/replay", h.Execute)
}

var replayShortcuts = shortcutFilters{
	"method": "method__eq",
	"path":   "path__eq",
}

func (h *ReplayHandler) List(c *gin.Context) {
	params := parseListParams(c, replayShortcuts)
	page, err := h.snapshots.List(c.Request.Context(), params)
	if err != nil {
		apperr.Handle(c, apperr.RetryableDependency("failed to list snapshots", err))
		return
	}
	respondList(c, page.Rows, params.Limit, params.Offset, page.Total)
}

func (h *ReplayHandler) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	row, err := h.snapshots.Get(c.Request.Context(), id)
	if err != nil {
		apperr.Handle(c, apperr.RetryableDependency("failed to fetch snapshot", err))
		return
	}
	if row == nil {
		apperr.Abort(c, apperr.NotFound("snapshot"))
		return
	}
	respondData(c, http.StatusOK, row)
}

type replayResult struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
	DurationMs int64             `json:"durationMs"`
}

func (h *ReplayHandler) Execute(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	row, err := h.snapshots.Get(c.Request.Context(), id)
	if err != nil {
		apperr.Handle(c, apperr.RetryableDependency("failed to fetch snapshot", err))
		return
	}
	if row == nil {
		apperr.Abort(c, apperr.NotFound("snapshot"))
		return
	}

	path, _ := row["path"].(string)
	for blocked := range blockedReplayPaths {
		if strings.Contains(path, blocked) {
			apperr.Abort(c, apperr.Forbidden("replaying this snapshot's path is not allowed"))
			return
		}
	}

	method, _ := row["method"].(string)
	method = strings.ToUpper(method)
	if !replayableMethods[method] {
		apperr.Abort(c, apperr.BadRequest("method "+method+" cannot be replayed"))
		return
	}

	query, _ := row["query"].(map[string]any)
	target := h.baseURL + path
	if len(query) > 0 {
		values := url.Values{}
		for k, v := range query {
			if s, ok := v.(string); ok {
				values.Set(k, s)
			}
		}
		target += "?" + values.Encode()
	}

	var bodyReader io.Reader
	if body, _ := row["body"].(string); body != "" && methodHasBody(method) {
		bodyReader = bytes.NewReader([]byte(body))
	}

	outbound, err := http.NewRequestWithContext(c.Request.Context(), method, target, bodyReader)
	if err != nil {
		apperr.Handle(c, apperr.Fatal(err))
		return
	}
	if headers, ok := row["headers"].(map[string]any); ok {
		for k, v := range headers {
			if excludedReplayHeaders[strings.ToLower(k)] {
				continue
			}
			if s, ok := v.(string); ok {
				outbound.Header.Set(k, s)
			}
		}
	}
	outbound.Header.Set("X-Internal-Replay", "true")
	if bodyReader != nil {
		outbound.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := h.client.Do(outbound)
	duration := time.Since(start)
	if err != nil {
		apperr.Handle(c, apperr.RetryableDependency("replay request failed", err))
		return
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	respHeaders := map[string]string{}
	for k, v := range resp.Header {
		if len(v) > 0 {
			respHeaders[k] = v[0]
		}
	}

	respondData(c, http.StatusOK, replayResult{
		StatusCode: resp.StatusCode,
		Headers:    respHeaders,
		Body:       string(respBody),
		DurationMs: duration.Milliseconds(),
	})
}

func methodHasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

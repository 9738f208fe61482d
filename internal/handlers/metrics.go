package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/obsplane/observability/internal/apperr"
	"github.com/obsplane/observability/internal/db"
)

// MetricsHandler serves the raw snapshot/metric-window read paths.
type MetricsHandler struct {
	snapshots     *db.Gateway
	metricWindows *db.Gateway
}

// NewMetricsHandler binds the request-snapshot and metric-window Gateways.
func NewMetricsHandler(snapshots, metricWindows *db.Gateway) *MetricsHandler {
	return &MetricsHandler{snapshots: snapshots, metricWindows: metricWindows}
}

// RegisterRoutes mounts the metrics routes under router.
func (h *MetricsHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/metrics", h.List)
	router.GET("/metrics/aggregate", h.Aggregate)
}

var metricShortcuts = shortcutFilters{
	"endpoint":   "path__eq",
	"statusCode": "response_status__eq",
}

// List returns captured request snapshots — the closest thing §3 has to a
// "raw metric" entity, since RawMetric itself never persists on its own.
func (h *MetricsHandler) List(c *gin.Context) {
	params := parseListParams(c, metricShortcuts)
	page, err := h.snapshots.List(c.Request.Context(), params)
	if err != nil {
		apperr.Handle(c, apperr.RetryableDependency("failed to list metrics", err))
		return
	}
	respondList(c, page.Rows, params.Limit, params.Offset, page.Total)
}

var metricWindowShortcuts = shortcutFilters{
	"endpoint":  "endpoint__eq",
	"startDate": "window_start__gte",
	"endDate":   "window_end__lte",
}

type metricWindowView struct {
	Endpoint         string   `json:"endpoint"`
	WindowStart      int64    `json:"windowStart"`
	WindowEnd        int64    `json:"windowEnd"`
	P50Ms            int      `json:"p50Ms"`
	P95Ms            int      `json:"p95Ms"`
	P99Ms            int      `json:"p99Ms"`
	ErrorRate        float64  `json:"errorRate"`
	TrafficCount     int      `json:"trafficCount"`
	MeanRequestSize  *float64 `json:"meanRequestSizeBytes,omitempty"`
	MeanResponseSize *float64 `json:"meanResponseSizeBytes,omitempty"`
}

// Aggregate returns persisted MetricWindow rows, scaling the integer
// error_rate_percent column back down to a decimal fraction — the single
// place in the read path that performs this conversion.
func (h *MetricsHandler) Aggregate(c *gin.Context) {
	params := parseListParams(c, metricWindowShortcuts)
	page, err := h.metricWindows.List(c.Request.Context(), params)
	if err != nil {
		apperr.Handle(c, apperr.RetryableDependency("failed to list metric windows", err))
		return
	}

	views := make([]metricWindowView, 0, len(page.Rows))
	for _, row := range page.Rows {
		views = append(views, rowToMetricWindowView(row))
	}
	respondList(c, views, params.Limit, params.Offset, page.Total)
}

func rowToMetricWindowView(row map[string]any) metricWindowView {
	v := metricWindowView{}
	v.Endpoint, _ = row["endpoint"].(string)
	v.WindowStart = asInt64(row["window_start"])
	v.WindowEnd = asInt64(row["window_end"])
	v.P50Ms = asInt(row["p50_ms"])
	v.P95Ms = asInt(row["p95_ms"])
	v.P99Ms = asInt(row["p99_ms"])
	v.TrafficCount = asInt(row["traffic_count"])
	v.ErrorRate = float64(asInt(row["error_rate_percent"])) / 100
	if mean, ok := row["mean_request_size_bytes"].(float64); ok {
		v.MeanRequestSize = &mean
	}
	if mean, ok := row["mean_response_size_bytes"].(float64); ok {
		v.MeanResponseSize = &mean
	}
	return v
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

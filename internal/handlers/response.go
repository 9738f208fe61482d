// Package handlers implements the HTTP surface of §6: the public user CRUD
// routes, the bearer-protected auth/health/logs/metrics/replay routes, the
// chaos endpoint, and the worker-only operator surface. Every handler renders
// through the shared apperr.Envelope so a client sees one response shape
// regardless of which route answered.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/obsplane/observability/internal/apperr"
	"github.com/obsplane/observability/internal/db"
)

// respondData renders a single successful payload with no pagination metadata.
func respondData(c *gin.Context, status int, v any) {
	c.JSON(status, apperr.Data(v))
}

// respondList renders a paginated payload alongside its {limit, offset, total}.
func respondList(c *gin.Context, v any, limit, offset, total int) {
	c.JSON(http.StatusOK, apperr.List(v, limit, offset, total))
}

// shortcutFilters maps an endpoint-specific query-param name to the canonical
// `field__op` filter key it translates to (§6).
type shortcutFilters map[string]string

// parseListParams builds db.ListParams from the common list query parameters
// plus any endpoint-specific shortcuts, applying each shortcut under its `eq`
// (or, for the two date bounds, `gte`/`lte`) operator.
func parseListParams(c *gin.Context, shortcuts shortcutFilters) db.ListParams {
	p := db.ListParams{
		OrderBy: c.DefaultQuery("order_by", "id"),
		Order:   c.DefaultQuery("order", "asc"),
		Search:  c.Query("search"),
		Filters: map[string]any{},
	}

	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			p.Limit = n
		}
	}
	if p.Limit == 0 {
		p.Limit = 20
	}
	if raw := c.Query("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			p.Offset = n
		}
	}

	for name, filterKey := range shortcuts {
		value := c.Query(name)
		if value == "" {
			continue
		}
		p.Filters[filterKey] = value
	}

	for key, values := range c.Request.URL.Query() {
		if _, isShortcut := shortcuts[key]; isShortcut {
			continue
		}
		switch key {
		case "limit", "offset", "order_by", "order", "search":
			continue
		}
		if _, _, err := db.ParseFilterKey(key); err == nil && len(values) > 0 {
			p.Filters[key] = values[0]
		}
	}

	return p
}

// idParam parses the `:id` path parameter, aborting with 422 on a non-numeric value.
func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		apperr.Abort(c, apperr.Validation([]apperr.Issue{{
			Code: "invalid_id", Path: "id", Message: "id must be an integer",
		}}))
		return 0, false
	}
	return id, true
}

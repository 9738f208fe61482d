package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowToMetricWindowView_ScalesErrorRateToFraction(t *testing.T) {
	row := map[string]any{
		"endpoint":           "/api/users",
		"window_start":       int64(1000),
		"window_end":         int64(2000),
		"p50_ms":             42,
		"p95_ms":             120,
		"p99_ms":             250,
		"traffic_count":      1500,
		"error_rate_percent": 37,
	}
	view := rowToMetricWindowView(row)
	assert.Equal(t, "/api/users", view.Endpoint)
	assert.Equal(t, int64(1000), view.WindowStart)
	assert.Equal(t, 0.37, view.ErrorRate)
	assert.Nil(t, view.MeanRequestSize)
}

func TestRowToMetricWindowView_KeepsMeanSizesWhenPresent(t *testing.T) {
	row := map[string]any{
		"error_rate_percent":       5,
		"mean_request_size_bytes":  512.5,
		"mean_response_size_bytes": 2048.0,
	}
	view := rowToMetricWindowView(row)
	assert.Equal(t, 0.05, view.ErrorRate)
	require.NotNil(t, view.MeanRequestSize)
	require.NotNil(t, view.MeanResponseSize)
	assert.Equal(t, 512.5, *view.MeanRequestSize)
}

func TestAsInt_HandlesDriverNumericTypes(t *testing.T) {
	assert.Equal(t, 7, asInt(int64(7)))
	assert.Equal(t, 7, asInt(float64(7)))
	assert.Equal(t, 0, asInt("not a number"))
}

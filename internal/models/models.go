// Package models defines the persistent entities of §3 and the transient
// RawMetric record that only ever lives in memory and in job payloads.
package models

import "time"

// Base carries the fields every persistent entity shares.
type Base struct {
	ID        int        `json:"id" db:"id"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
	DeletedAt *time.Time `json:"deletedAt,omitempty" db:"deleted_at"`
	Embedding []float32  `json:"-" db:"embedding"`
}

// Role enumerates §3's closed set of User roles.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is an account holder.
type User struct {
	Base
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password_hash"`
	Role         Role   `json:"role" db:"role"`
}

// RefreshToken is a hashed opaque session token, validated by linear scan
// over the active set (§3: random salt per hash forbids indexed lookup).
type RefreshToken struct {
	Base
	UserID             int        `json:"userId" db:"user_id"`
	TokenHash          string     `json:"-" db:"token_hash"`
	ExpiresAt          time.Time  `json:"expiresAt" db:"expires_at"`
	DeviceFingerprint  string     `json:"deviceFingerprint" db:"device_fingerprint"`
	SourceIP           string     `json:"sourceIp" db:"source_ip"`
	RevokedAt          *time.Time `json:"revokedAt,omitempty" db:"revoked_at"`
}

// LogLevel enumerates §3's closed set of Log levels.
type LogLevel string

const (
	LevelFatal LogLevel = "fatal"
	LevelError LogLevel = "error"
	LevelWarn  LogLevel = "warn"
	LevelInfo  LogLevel = "info"
	LevelDebug LogLevel = "debug"
	LevelTrace LogLevel = "trace"
)

// Log is a structured log line produced by any component.
type Log struct {
	Base
	Source     string         `json:"source" db:"source"`
	Level      LogLevel       `json:"level" db:"level"`
	Message    string         `json:"message" db:"message"`
	Attributes map[string]any `json:"attributes,omitempty" db:"attributes"`
}

// RawMetric is transient: it never persists on its own, only inside a
// PROCESS_RAW_METRICS job payload.
type RawMetric struct {
	Endpoint         string `json:"endpoint"`
	LatencyMs        int    `json:"latencyMs"`
	Status           int    `json:"status"`
	TimestampMs       int64  `json:"timestampMs"`
	RequestSizeBytes  *int   `json:"requestSizeBytes,omitempty"`
	ResponseSizeBytes *int   `json:"responseSizeBytes,omitempty"`
}

// MetricWindow is one aggregated (endpoint, window) row.
type MetricWindow struct {
	Base
	Endpoint             string   `json:"endpoint" db:"endpoint"`
	WindowStart          int64    `json:"windowStart" db:"window_start"`
	WindowEnd            int64    `json:"windowEnd" db:"window_end"`
	P50Ms                int      `json:"p50Ms" db:"p50_ms"`
	P95Ms                int      `json:"p95Ms" db:"p95_ms"`
	P99Ms                int      `json:"p99Ms" db:"p99_ms"`
	ErrorRatePercent     int      `json:"errorRatePercent" db:"error_rate_percent"`
	TrafficCount         int      `json:"trafficCount" db:"traffic_count"`
	MeanRequestSizeBytes  *float64 `json:"meanRequestSizeBytes,omitempty" db:"mean_request_size_bytes"`
	MeanResponseSizeBytes *float64 `json:"meanResponseSizeBytes,omitempty" db:"mean_response_size_bytes"`
}

// GeoSource enumerates how a request's geo attributes were resolved.
type GeoSource string

const (
	GeoSourcePlatform GeoSource = "platform"
	GeoSourceHeader   GeoSource = "header"
	GeoSourceIP       GeoSource = "ip"
	GeoSourceNone     GeoSource = "none"
)

// Geo is the coarse geographic attribution attached by the pipeline's Geo step.
type Geo struct {
	Country string    `json:"country,omitempty"`
	Region  string    `json:"region,omitempty"`
	City    string    `json:"city,omitempty"`
	Lat     float64   `json:"lat,omitempty"`
	Lon     float64   `json:"lon,omitempty"`
	Source  GeoSource `json:"source"`
}

// RequestSnapshot is a captured copy of an inbound request and its response.
type RequestSnapshot struct {
	Base
	Method          string            `json:"method" db:"method"`
	Path            string            `json:"path" db:"path"`
	Query           map[string]string `json:"query,omitempty" db:"query"`
	Headers         map[string]string `json:"headers,omitempty" db:"headers"`
	Body            string            `json:"body,omitempty" db:"body"`
	UserID          *int              `json:"userId,omitempty" db:"user_id"`
	Version         string            `json:"version,omitempty" db:"version"`
	Environment     string            `json:"environment,omitempty" db:"environment"`
	ResponseStatus  int               `json:"responseStatus" db:"response_status"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty" db:"response_headers"`
	ResponseBody    string            `json:"responseBody,omitempty" db:"response_body"`
	DurationMs      int               `json:"durationMs" db:"duration_ms"`
	Geo             Geo               `json:"geo" db:"geo"`
}

// WorkerMode enumerates §3's closed set of Job Fabric modes.
type WorkerMode string

const (
	ModeLocal  WorkerMode = "local"
	ModeRemote WorkerMode = "remote"
)

// WorkerStats is the most recent worker snapshot for one mode.
type WorkerStats struct {
	Base
	Mode              WorkerMode `json:"mode" db:"mode"`
	QueueDepth        int        `json:"queueDepth" db:"queue_depth"`
	InFlightCount     int        `json:"inFlightCount" db:"in_flight_count"`
	ScheduledJobCount int        `json:"scheduledJobCount" db:"scheduled_job_count"`
	AvailableJobCount int        `json:"availableJobCount" db:"available_job_count"`
	ScheduledJobs     []byte     `json:"-" db:"scheduled_jobs"`
	AvailableJobs     []byte     `json:"-" db:"available_jobs"`
	LastHeartbeat     time.Time  `json:"lastHeartbeat" db:"last_heartbeat"`
}

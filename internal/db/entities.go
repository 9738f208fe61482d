package db

// Per-entity Schema declarations. Each Gateway is a thin binding of one of
// these schemas to the shared connection pool; handlers call the generic
// List/Get/Create/Update/Delete directly rather than hand-rolled per-entity
// query methods.

// UsersSchema backs the User entity (§3).
var UsersSchema = Schema{
	Table: "users",
	Columns: []Column{
		{Name: "email", Kind: KindString},
		{Name: "password_hash", Kind: KindString, PasswordShadow: true},
		{Name: "role", Kind: KindString},
	},
	TextSearchColumns: []string{"email"},
}

// RefreshTokensSchema backs the RefreshToken entity (§3).
var RefreshTokensSchema = Schema{
	Table: "refresh_tokens",
	Columns: []Column{
		{Name: "user_id", Kind: KindInt},
		{Name: "token_hash", Kind: KindString, PasswordShadow: true},
		{Name: "expires_at", Kind: KindTime},
		{Name: "device_fingerprint", Kind: KindString},
		{Name: "source_ip", Kind: KindString},
		{Name: "revoked_at", Kind: KindTime},
	},
}

// LogsSchema backs the Log entity (§3).
var LogsSchema = Schema{
	Table: "logs",
	Columns: []Column{
		{Name: "source", Kind: KindString},
		{Name: "level", Kind: KindString},
		{Name: "message", Kind: KindString},
		{Name: "attributes", Kind: KindJSON},
	},
	TextSearchColumns: []string{"message", "source"},
}

// MetricWindowsSchema backs the MetricWindow entity (§3, §4.D).
var MetricWindowsSchema = Schema{
	Table: "metric_windows",
	Columns: []Column{
		{Name: "endpoint", Kind: KindString},
		{Name: "window_start", Kind: KindInt},
		{Name: "window_end", Kind: KindInt},
		{Name: "p50_ms", Kind: KindInt},
		{Name: "p95_ms", Kind: KindInt},
		{Name: "p99_ms", Kind: KindInt},
		{Name: "error_rate_percent", Kind: KindInt},
		{Name: "traffic_count", Kind: KindInt},
		{Name: "mean_request_size_bytes", Kind: KindFloat},
		{Name: "mean_response_size_bytes", Kind: KindFloat},
	},
	TextSearchColumns: []string{"endpoint"},
}

// RequestSnapshotsSchema backs the RequestSnapshot entity (§3, §4.A).
var RequestSnapshotsSchema = Schema{
	Table: "request_snapshots",
	Columns: []Column{
		{Name: "method", Kind: KindString},
		{Name: "path", Kind: KindString},
		{Name: "query", Kind: KindJSON},
		{Name: "headers", Kind: KindJSON},
		{Name: "body", Kind: KindString},
		{Name: "user_id", Kind: KindInt},
		{Name: "version", Kind: KindString},
		{Name: "environment", Kind: KindString},
		{Name: "response_status", Kind: KindInt},
		{Name: "response_headers", Kind: KindJSON},
		{Name: "response_body", Kind: KindString},
		{Name: "duration_ms", Kind: KindInt},
		{Name: "geo", Kind: KindJSON},
	},
	TextSearchColumns: []string{"path"},
}

// WorkerStatsSchema backs the WorkerStats entity (§3, §4.C).
var WorkerStatsSchema = Schema{
	Table: "worker_stats",
	Columns: []Column{
		{Name: "mode", Kind: KindString},
		{Name: "queue_depth", Kind: KindInt},
		{Name: "in_flight_count", Kind: KindInt},
		{Name: "scheduled_job_count", Kind: KindInt},
		{Name: "available_job_count", Kind: KindInt},
		{Name: "scheduled_jobs", Kind: KindJSON},
		{Name: "available_jobs", Kind: KindJSON},
		{Name: "last_heartbeat", Kind: KindTime},
	},
}

// Gateways bundles one Gateway per entity, constructed once at startup and
// threaded through the handler and job packages.
type Gateways struct {
	Users            *Gateway
	RefreshTokens    *Gateway
	Logs             *Gateway
	MetricWindows    *Gateway
	RequestSnapshots *Gateway
	WorkerStats      *Gateway
}

// NewGateways binds every entity schema to the shared pool.
func NewGateways(database *Database) *Gateways {
	sqlDB := database.DB()
	return &Gateways{
		Users:            NewGateway(sqlDB, UsersSchema),
		RefreshTokens:    NewGateway(sqlDB, RefreshTokensSchema),
		Logs:             NewGateway(sqlDB, LogsSchema),
		MetricWindows:    NewGateway(sqlDB, MetricWindowsSchema),
		RequestSnapshots: NewGateway(sqlDB, RequestSnapshotsSchema),
		WorkerStats:      NewGateway(sqlDB, WorkerStatsSchema),
	}
}

// Package bootstrap builds the collaborators shared by cmd/api and
// cmd/worker: configuration, the database pool, the entity Gateways, the
// optional Redis cache, and the static job registry. Each binary wires these
// into its own process topology (§2.1).
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/obsplane/observability/internal/auth"
	"github.com/obsplane/observability/internal/cache"
	"github.com/obsplane/observability/internal/config"
	"github.com/obsplane/observability/internal/db"
	"github.com/obsplane/observability/internal/geo"
	"github.com/obsplane/observability/internal/jobs"
	"github.com/obsplane/observability/internal/logger"
	"github.com/obsplane/observability/internal/models"
)

// Base is the set of collaborators both binaries need before they diverge
// into their own Job Fabric and HTTP wiring.
type Base struct {
	Config   *config.Config
	Database *db.Database
	Gateways *db.Gateways
	Cache    *cache.Cache
	Registry *jobs.Registry
	JWT      *auth.JWTManager
	Refresh  *auth.RefreshTokens
	GeoLookup geo.IPLookup
}

// New loads configuration, connects and migrates the database, wires the
// optional cache, and builds the static job registry every handler shares.
func New(ctx context.Context) (*Base, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Initialize(cfg.LogLevel, !cfg.IsProduction())

	database, err := db.NewDatabase(ctx, cfg.DatabaseURL, db.DefaultPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	gateways := db.NewGateways(database)

	redisCache, err := cache.NewCache(cfg.RedisURL)
	if err != nil {
		logger.Gateway().Warn().Err(err).Msg("cache unavailable, continuing without it")
		redisCache, _ = cache.NewCache("")
	}

	registry := jobs.NewRegistry()
	registry.Register(jobs.JobDef{
		Type: jobs.TypeProcessRawMetrics, Handler: jobs.NewProcessRawMetricsHandler(gateways.MetricWindows),
		HumanName: "Process raw metrics", Description: "Folds raw request metrics into aggregated windows", Category: "metrics",
	})
	registry.Register(jobs.JobDef{
		Type: jobs.TypeProcessMetrics, Handler: jobs.NewProcessMetricsHandler(gateways.MetricWindows),
		HumanName: "Re-aggregate metric window", Description: "Scheduled backfill sweep over a time range", Category: "metrics",
	})
	registry.Register(jobs.JobDef{
		Type: jobs.TypeCleanupLogs, Handler: jobs.NewCleanupLogsHandler(gateways.Logs),
		HumanName: "Clean up old logs", Description: "Hard-deletes logs past the retention cutoff", Category: "maintenance",
	})
	registry.Register(jobs.JobDef{
		Type: jobs.TypeHealthCheck, Handler: jobs.NewHealthCheckHandler(func(ctx context.Context) error { return database.Ping(ctx) }, gateways.WorkerStats, WorkerMode(cfg)),
		HumanName: "Heartbeat", Description: "Pings the database and updates the worker heartbeat", Category: "maintenance",
		DefaultMaxAttempts: 1,
	})

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, "observability-plane", cfg.JWTAccessExpiresIn)
	refreshTokens := auth.NewRefreshTokens(gateways.RefreshTokens, cfg.JWTRefreshExpiresInDays)

	var geoLookup geo.IPLookup = geo.NoopLookup{}
	if redisCache.IsEnabled() {
		geoLookup = geo.NewCachedLookup(geo.NoopLookup{}, redisCache, 24*time.Hour)
	}

	return &Base{
		Config: cfg, Database: database, Gateways: gateways, Cache: redisCache,
		Registry: registry, JWT: jwtManager, Refresh: refreshTokens, GeoLookup: geoLookup,
	}, nil
}

// WorkerMode reports the configured Job Fabric mode as the models.WorkerMode
// enum, used to scope WorkerStats rows to the running process's mode.
func WorkerMode(cfg *config.Config) models.WorkerMode {
	if cfg.JobFabricMode == "remote" {
		return models.ModeRemote
	}
	return models.ModeLocal
}

// InstallDefaultSchedules registers the §4.C default rules on scheduler if
// they are not already present: a default whose cron expression and job type
// already appear in scheduler.List() is skipped. Both backends keep rules in
// memory only, so a restarted process starts with an empty list and installs
// all defaults again.
func InstallDefaultSchedules(scheduler jobs.Scheduler) error {
	defaults := []struct {
		cron    string
		jobType string
		payload any
	}{
		{"*/5 * * * *", jobs.TypeHealthCheck, map[string]any{"checkType": "database"}},
		{"0 0 * * *", jobs.TypeCleanupLogs, map[string]any{"olderThanDays": 30, "batchSize": 1000}},
		{"*/15 * * * *", jobs.TypeProcessMetrics, map[string]any{}},
	}
	existing := map[string]bool{}
	for _, r := range scheduler.List() {
		existing[r.Cron+" "+r.Type] = true
	}
	for _, d := range defaults {
		if existing[d.cron+" "+d.jobType] {
			continue
		}
		if _, err := scheduler.Schedule(d.cron, d.jobType, d.payload); err != nil {
			return fmt.Errorf("schedule %s: %w", d.jobType, err)
		}
	}
	return nil
}

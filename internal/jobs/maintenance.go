package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/obsplane/observability/internal/db"
	"github.com/obsplane/observability/internal/logger"
	"github.com/obsplane/observability/internal/models"
)

type cleanupLogsPayload struct {
	OlderThanDays int `json:"olderThanDays"`
	BatchSize     int `json:"batchSize"`
}

// NewCleanupLogsHandler hard-deletes logs older than the cutoff in batches,
// sleeping between batches until a batch comes back short of BatchSize.
func NewCleanupLogsHandler(gateway *db.Gateway) Handler {
	return func(ctx context.Context, payload []byte) error {
		var p cleanupLogsPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("invalid CLEANUP_LOGS payload: %w", err)
		}
		if p.BatchSize <= 0 {
			p.BatchSize = 1000
		}
		cutoff := time.Now().AddDate(0, 0, -p.OlderThanDays)

		totalDeleted := 0
		for {
			page, err := gateway.List(ctx, db.ListParams{
				Limit:   p.BatchSize,
				OrderBy: "id",
				Order:   "asc",
				Filters: map[string]any{"created_at__lt": cutoff},
			})
			if err != nil {
				return fmt.Errorf("list logs for cleanup: %w", err)
			}
			for _, row := range page.Rows {
				if _, err := gateway.Delete(ctx, db.RowID(row), false); err != nil {
					return fmt.Errorf("hard delete log %d: %w", db.RowID(row), err)
				}
			}
			totalDeleted += len(page.Rows)
			if len(page.Rows) < p.BatchSize {
				break
			}
			time.Sleep(100 * time.Millisecond)
		}
		logger.Maintenance().Info().Int("deleted", totalDeleted).Time("cutoff", cutoff).Msg("log cleanup complete")
		return nil
	}
}

type healthCheckPayload struct {
	CheckType string `json:"checkType"`
}

// NewHealthCheckHandler pings the database (when applicable) and always
// upserts the WorkerStats heartbeat row for mode, regardless of ping outcome.
func NewHealthCheckHandler(sqlPing func(ctx context.Context) error, workerStats *db.Gateway, mode models.WorkerMode) Handler {
	return func(ctx context.Context, payload []byte) error {
		var p healthCheckPayload
		_ = json.Unmarshal(payload, &p)

		if p.CheckType == "" || p.CheckType == "database" {
			if err := sqlPing(ctx); err != nil {
				logger.Maintenance().Warn().Err(err).Msg("health check database ping failed")
			}
		}

		if err := touchHeartbeat(ctx, workerStats, mode); err != nil {
			logger.Maintenance().Error().Err(err).Msg("failed to update worker heartbeat")
		}
		return nil
	}
}

func touchHeartbeat(ctx context.Context, gateway *db.Gateway, mode models.WorkerMode) error {
	existing, err := gateway.GetFirst(ctx, db.ListParams{Filters: map[string]any{"mode__eq": string(mode)}})
	if err != nil {
		return err
	}
	values := map[string]any{
		"mode":           string(mode),
		"last_heartbeat": time.Now(),
	}
	if existing == nil {
		_, err := gateway.Create(ctx, values)
		return err
	}
	_, err = gateway.Update(ctx, db.RowID(existing), values)
	return err
}

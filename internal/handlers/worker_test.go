package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/obsplane/observability/internal/db"
	"github.com/obsplane/observability/internal/jobs"
	"github.com/obsplane/observability/internal/models"
)

func TestWorkerHandler_Enqueue_RejectsUnknownType(t *testing.T) {
	registry := jobs.NewRegistry()
	queue := jobs.NewLocalQueue(registry, 1, 10)
	require.NoError(t, queue.Subscribe(context.Background(), nil))
	defer queue.Close()
	scheduler := jobs.NewLocalScheduler(queue)

	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	gateway := db.NewGateway(sqlDB, db.WorkerStatsSchema)

	handler := NewWorkerHandler(registry, queue, scheduler, gateway, sqlDB, models.WorkerMode("local"))
	engine := newTestEngine()
	handler.RegisterRoutes(engine)

	body, _ := json.Marshal(map[string]any{"type": "NOT_REGISTERED"})
	req := httptest.NewRequest(http.MethodPost, "/jobs/enqueue", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestWorkerHandler_Enqueue_AcceptsKnownType(t *testing.T) {
	registry := jobs.NewRegistry()
	registry.Register(jobs.JobDef{Type: "ECHO", Handler: func(ctx context.Context, payload []byte) error { return nil }})
	queue := jobs.NewLocalQueue(registry, 1, 10)
	require.NoError(t, queue.Subscribe(context.Background(), nil))
	defer queue.Close()
	scheduler := jobs.NewLocalScheduler(queue)

	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	gateway := db.NewGateway(sqlDB, db.WorkerStatsSchema)

	handler := NewWorkerHandler(registry, queue, scheduler, gateway, sqlDB, models.WorkerMode("local"))
	engine := newTestEngine()
	handler.RegisterRoutes(engine)

	body, _ := json.Marshal(map[string]any{"type": "ECHO", "payload": map[string]any{"x": 1}})
	req := httptest.NewRequest(http.MethodPost, "/jobs/enqueue", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestWorkerHandler_ListJobTypes(t *testing.T) {
	registry := jobs.NewRegistry()
	registry.Register(jobs.JobDef{Type: "ECHO", HumanName: "Echo", Handler: func(ctx context.Context, payload []byte) error { return nil }})
	queue := jobs.NewLocalQueue(registry, 1, 10)
	require.NoError(t, queue.Subscribe(context.Background(), nil))
	defer queue.Close()
	scheduler := jobs.NewLocalScheduler(queue)

	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	gateway := db.NewGateway(sqlDB, db.WorkerStatsSchema)

	handler := NewWorkerHandler(registry, queue, scheduler, gateway, sqlDB, models.WorkerMode("local"))
	engine := newTestEngine()
	handler.RegisterRoutes(engine)

	req := httptest.NewRequest(http.MethodGet, "/worker/jobs", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []jobDefView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, "ECHO", resp.Data[0].Type)
}

package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/obsplane/observability/internal/jobs"
	"github.com/obsplane/observability/internal/pipeline"
)

type capturingQueue struct {
	mu    sync.Mutex
	calls int
}

func (q *capturingQueue) Enqueue(ctx context.Context, jobType string, payload any, opts ...jobs.EnqueueOption) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	return "id", nil
}
func (q *capturingQueue) Subscribe(ctx context.Context, handlers map[string]jobs.Handler) error {
	return nil
}
func (q *capturingQueue) Stats(ctx context.Context) (jobs.QueueStats, error) {
	return jobs.QueueStats{}, nil
}
func (q *capturingQueue) Close() error { return nil }

func newTestCoordinator() *pipeline.Coordinator {
	return pipeline.NewCoordinator(nil, nil, &capturingQueue{}, 50, time.Hour)
}

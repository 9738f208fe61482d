package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQueue is a minimal Queue stand-in that records Enqueue calls, so
// RemoteScheduler's tick loop can be exercised without a live NATS broker.
type fakeQueue struct {
	mu       sync.Mutex
	enqueued []string
}

func (q *fakeQueue) Enqueue(ctx context.Context, jobType string, payload any, opts ...EnqueueOption) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, jobType)
	return "fake-id", nil
}
func (q *fakeQueue) Subscribe(ctx context.Context, handlers map[string]Handler) error { return nil }
func (q *fakeQueue) Stats(ctx context.Context) (QueueStats, error)                    { return QueueStats{}, nil }
func (q *fakeQueue) Close() error                                                     { return nil }

func (q *fakeQueue) snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.enqueued))
	copy(out, q.enqueued)
	return out
}

func TestRemoteScheduler_ScheduleAndUnschedule(t *testing.T) {
	scheduler := NewRemoteScheduler(&fakeQueue{})
	id, err := scheduler.Schedule("*/5 * * * *", "ECHO", nil)
	require.NoError(t, err)
	assert.Len(t, scheduler.List(), 1)

	require.NoError(t, scheduler.Unschedule(id))
	assert.Empty(t, scheduler.List())
	assert.Error(t, scheduler.Unschedule(id))
}

func TestRemoteScheduler_RejectsInvalidCron(t *testing.T) {
	scheduler := NewRemoteScheduler(&fakeQueue{})
	_, err := scheduler.Schedule("not a cron expression", "ECHO", nil)
	assert.Error(t, err)
}

func TestRemoteScheduler_TickEnqueuesDueRules(t *testing.T) {
	schedule, err := cron.ParseStandard("*/5 * * * *")
	require.NoError(t, err)

	queue := &fakeQueue{}
	scheduler := NewRemoteScheduler(queue)

	scheduler.mu.Lock()
	scheduler.rules["due"] = &localRule{
		rule:     ScheduleRule{ID: "due", Type: "ECHO", Enabled: true},
		schedule: schedule,
		nextRun:  time.Now().Add(-time.Second),
	}
	scheduler.mu.Unlock()

	scheduler.tick(context.Background(), time.Now())

	assert.Equal(t, []string{"ECHO"}, queue.snapshot())
}

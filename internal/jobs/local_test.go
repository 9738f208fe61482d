package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalQueue_EnqueueAndProcess(t *testing.T) {
	registry := NewRegistry()
	var mu sync.Mutex
	var processed []string
	registry.Register(JobDef{
		Type: "ECHO",
		Handler: func(ctx context.Context, payload []byte) error {
			mu.Lock()
			processed = append(processed, string(payload))
			mu.Unlock()
			return nil
		},
	})

	queue := NewLocalQueue(registry, 2, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, queue.Subscribe(ctx, nil))
	defer queue.Close()

	id, err := queue.Enqueue(ctx, "ECHO", map[string]any{"hello": "world"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(processed) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestLocalQueue_Enqueue_UnregisteredType(t *testing.T) {
	queue := NewLocalQueue(NewRegistry(), 1, 10)
	_, err := queue.Enqueue(context.Background(), "UNKNOWN", nil)
	assert.Error(t, err)
}

func TestLocalQueue_DeadLettersAfterExhaustingRetries(t *testing.T) {
	registry := NewRegistry()
	attempts := 0
	var mu sync.Mutex
	registry.Register(JobDef{
		Type:               "ALWAYS_FAILS",
		DefaultMaxAttempts: 1,
		Handler: func(ctx context.Context, payload []byte) error {
			mu.Lock()
			attempts++
			mu.Unlock()
			return assert.AnError
		},
	})

	queue := NewLocalQueue(registry, 1, 5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, queue.Subscribe(ctx, nil))
	defer queue.Close()

	_, err := queue.Enqueue(ctx, "ALWAYS_FAILS", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(queue.DeadLetters()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestLocalScheduler_RejectsInvalidCron(t *testing.T) {
	scheduler := NewLocalScheduler(NewLocalQueue(NewRegistry(), 1, 1))
	_, err := scheduler.Schedule("not a cron expression", "ECHO", nil)
	assert.Error(t, err)
}

func TestLocalScheduler_ScheduleAndUnschedule(t *testing.T) {
	scheduler := NewLocalScheduler(NewLocalQueue(NewRegistry(), 1, 1))
	id, err := scheduler.Schedule("*/5 * * * *", "ECHO", nil)
	require.NoError(t, err)
	assert.Len(t, scheduler.List(), 1)

	require.NoError(t, scheduler.Unschedule(id))
	assert.Empty(t, scheduler.List())

	assert.Error(t, scheduler.Unschedule(id))
}

// Package jobs implements the Job Fabric: a Queue + Scheduler abstraction
// with two interchangeable backends (in-process local, NATS JetStream
// remote) sharing one contract, at-least-once delivery, retries with
// backoff, and dead-lettering.
package jobs

import (
	"context"
	"time"
)

// Job is one unit of work dispatched to a registered handler.
type Job struct {
	ID           string
	Type         string
	Payload      []byte
	Attempts     int
	MaxAttempts  int
	CreatedAt    time.Time
	ScheduledFor *time.Time
}

// EnqueueOptions carries enqueue-time overrides.
type EnqueueOptions struct {
	MaxAttempts  int
	Delay        time.Duration
	ScheduledFor *time.Time
}

// EnqueueOption mutates EnqueueOptions.
type EnqueueOption func(*EnqueueOptions)

// WithMaxAttempts overrides the handler's default max attempts for this job.
func WithMaxAttempts(n int) EnqueueOption {
	return func(o *EnqueueOptions) { o.MaxAttempts = n }
}

// WithDelay schedules the job to become ready after d has elapsed.
func WithDelay(d time.Duration) EnqueueOption {
	return func(o *EnqueueOptions) { o.Delay = d }
}

// WithScheduledFor schedules the job to become ready at t.
func WithScheduledFor(t time.Time) EnqueueOption {
	return func(o *EnqueueOptions) { o.ScheduledFor = &t }
}

// Handler processes one job's payload. Returning an error counts as a
// failed attempt subject to the registered retry policy.
type Handler func(ctx context.Context, payload []byte) error

// QueueStats reports the instantaneous queue state.
type QueueStats struct {
	Depth     int
	InFlight  int
	Mode      string
}

// Queue is the enqueue/consume contract shared by the local and remote backends.
type Queue interface {
	Enqueue(ctx context.Context, jobType string, payload any, opts ...EnqueueOption) (string, error)
	Subscribe(ctx context.Context, handlers map[string]Handler) error
	Stats(ctx context.Context) (QueueStats, error)
	Close() error
}

// ScheduleRule is one registered cron-driven enqueue rule.
type ScheduleRule struct {
	ID      string
	Cron    string
	Type    string
	Payload any
	Enabled bool
}

// Scheduler is the cron contract shared by the local and remote backends.
type Scheduler interface {
	Schedule(cronExpr, jobType string, payload any) (string, error)
	Unschedule(ruleID string) error
	List() []ScheduleRule
	Start(ctx context.Context)
	Stop()
}

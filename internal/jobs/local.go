package jobs

import (
	"container/heap"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/obsplane/observability/internal/logger"
)

// LocalQueue is the in-process Queue: a buffered channel FIFO plus a bounded
// worker pool, a min-heap of not-yet-ready scheduled jobs drained by one
// timer goroutine, and a fixed-size ring buffer dead-letter sink.
type LocalQueue struct {
	registry *Registry
	ready    chan Job
	workers  int

	mu        sync.Mutex
	pending   pendingHeap
	pendingCh chan struct{}

	dlq      []Job
	dlqSize  int
	dlqMu    sync.Mutex

	inFlight int32

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLocalQueue constructs a LocalQueue with workers consumer routines and a
// DLQ ring of size dlqSize.
func NewLocalQueue(registry *Registry, workers, dlqSize int) *LocalQueue {
	return &LocalQueue{
		registry:  registry,
		ready:     make(chan Job, 1000),
		workers:   workers,
		pendingCh: make(chan struct{}, 1),
		dlqSize:   dlqSize,
	}
}

type pendingJob struct {
	job Job
	at  time.Time
}

type pendingHeap []pendingJob

func (h pendingHeap) Len() int            { return len(h) }
func (h pendingHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h pendingHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *pendingHeap) Push(x any)         { *h = append(*h, x.(pendingJob)) }
func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Enqueue appends jobType/payload to the queue, honoring a delay or an
// absolute ScheduledFor by parking the job in the pending heap.
func (q *LocalQueue) Enqueue(ctx context.Context, jobType string, payload any, opts ...EnqueueOption) (string, error) {
	def, ok := q.registry.Lookup(jobType)
	if !ok {
		return "", fmt.Errorf("unregistered job type %q", jobType)
	}
	options := EnqueueOptions{MaxAttempts: def.DefaultMaxAttempts}
	for _, opt := range opts {
		opt(&options)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}

	job := Job{
		ID:          uuid.New().String(),
		Type:        jobType,
		Payload:     raw,
		MaxAttempts: options.MaxAttempts,
		CreatedAt:   time.Now(),
	}

	readyAt := time.Time{}
	if options.ScheduledFor != nil {
		readyAt = *options.ScheduledFor
	} else if options.Delay > 0 {
		readyAt = time.Now().Add(options.Delay)
	}

	if !readyAt.IsZero() && readyAt.After(time.Now()) {
		job.ScheduledFor = &readyAt
		q.mu.Lock()
		heap.Push(&q.pending, pendingJob{job: job, at: readyAt})
		q.mu.Unlock()
		select {
		case q.pendingCh <- struct{}{}:
		default:
		}
		return job.ID, nil
	}

	select {
	case q.ready <- job:
	default:
		return "", fmt.Errorf("local queue full")
	}
	return job.ID, nil
}

// Subscribe starts the worker pool; handlers is ignored in favor of the
// registry, which is the single source of truth for type -> handler.
func (q *LocalQueue) Subscribe(ctx context.Context, handlers map[string]Handler) error {
	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	q.wg.Add(1)
	go q.runPendingScanner(runCtx)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.runWorker(runCtx)
	}
	return nil
}

func (q *LocalQueue) runPendingScanner(ctx context.Context) {
	defer q.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.promoteDue()
		case <-q.pendingCh:
			q.promoteDue()
		}
	}
}

func (q *LocalQueue) promoteDue() {
	now := time.Now()
	for {
		q.mu.Lock()
		if q.pending.Len() == 0 || q.pending[0].at.After(now) {
			q.mu.Unlock()
			return
		}
		item := heap.Pop(&q.pending).(pendingJob)
		q.mu.Unlock()
		select {
		case q.ready <- item.job:
		default:
			logger.Jobs().Warn().Str("job_type", item.job.Type).Msg("local queue full, dropping due scheduled job")
		}
	}
}

func (q *LocalQueue) runWorker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.ready:
			q.process(ctx, job)
		}
	}
}

func (q *LocalQueue) process(ctx context.Context, job Job) {
	def, ok := q.registry.Lookup(job.Type)
	if !ok {
		q.deadLetter(job, "unregistered job type")
		return
	}

	atomic.AddInt32(&q.inFlight, 1)
	defer atomic.AddInt32(&q.inFlight, -1)

	handlerCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := def.Handler(handlerCtx, job.Payload)
	if err == nil {
		return
	}

	job.Attempts++
	if job.Attempts >= job.MaxAttempts {
		logger.Jobs().Error().Err(err).Str("job_type", job.Type).Int("attempts", job.Attempts).Msg("job exhausted retries, dead-lettering")
		q.deadLetter(job, err.Error())
		return
	}

	backoff := time.Duration(30*(1<<uint(job.Attempts-1))) * time.Second
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}
	logger.Jobs().Warn().Err(err).Str("job_type", job.Type).Int("attempts", job.Attempts).Dur("backoff", backoff).Msg("job failed, retrying")

	readyAt := time.Now().Add(backoff)
	job.ScheduledFor = &readyAt
	q.mu.Lock()
	heap.Push(&q.pending, pendingJob{job: job, at: readyAt})
	q.mu.Unlock()
}

func (q *LocalQueue) deadLetter(job Job, reason string) {
	q.dlqMu.Lock()
	defer q.dlqMu.Unlock()
	q.dlq = append(q.dlq, job)
	if len(q.dlq) > q.dlqSize {
		q.dlq = q.dlq[len(q.dlq)-q.dlqSize:]
	}
	logger.Jobs().Error().Str("job_type", job.Type).Str("job_id", job.ID).Str("reason", reason).Msg("job dead-lettered")
}

// DeadLetters returns a snapshot of the DLQ ring, newest last.
func (q *LocalQueue) DeadLetters() []Job {
	q.dlqMu.Lock()
	defer q.dlqMu.Unlock()
	out := make([]Job, len(q.dlq))
	copy(out, q.dlq)
	return out
}

// Stats reports the exact in-process queue depth and in-flight count.
func (q *LocalQueue) Stats(ctx context.Context) (QueueStats, error) {
	q.mu.Lock()
	pendingLen := q.pending.Len()
	q.mu.Unlock()
	return QueueStats{
		Depth:    len(q.ready) + pendingLen,
		InFlight: int(atomic.LoadInt32(&q.inFlight)),
		Mode:     "local",
	}, nil
}

// Close stops the worker pool and pending scanner.
func (q *LocalQueue) Close() error {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
	return nil
}

// LocalScheduler evaluates cron expressions on a 1-second timer and enqueues
// onto the paired Queue when a rule fires.
type LocalScheduler struct {
	queue Queue
	mu    sync.Mutex
	rules map[string]*localRule
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type localRule struct {
	rule     ScheduleRule
	schedule cron.Schedule
	nextRun  time.Time
}

// NewLocalScheduler binds a scheduler to the queue it enqueues onto.
func NewLocalScheduler(queue Queue) *LocalScheduler {
	return &LocalScheduler{queue: queue, rules: map[string]*localRule{}}
}

// Schedule parses cronExpr (5-field, standard) and registers a firing rule.
func (s *LocalScheduler) Schedule(cronExpr, jobType string, payload any) (string, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return "", fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	id := uuid.New().String()
	s.mu.Lock()
	s.rules[id] = &localRule{
		rule:     ScheduleRule{ID: id, Cron: cronExpr, Type: jobType, Payload: payload, Enabled: true},
		schedule: schedule,
		nextRun:  schedule.Next(time.Now()),
	}
	s.mu.Unlock()
	return id, nil
}

// Unschedule removes a rule.
func (s *LocalScheduler) Unschedule(ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[ruleID]; !ok {
		return fmt.Errorf("unknown schedule rule %q", ruleID)
	}
	delete(s.rules, ruleID)
	return nil
}

// List returns the registered rules.
func (s *LocalScheduler) List() []ScheduleRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ScheduleRule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r.rule)
	}
	return out
}

// Start begins the 1-second tick evaluation loop.
func (s *LocalScheduler) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case now := <-ticker.C:
				s.tick(runCtx, now)
			}
		}
	}()
}

func (s *LocalScheduler) tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := make([]*localRule, 0)
	for _, r := range s.rules {
		if !r.nextRun.After(now) {
			due = append(due, r)
			r.nextRun = r.schedule.Next(now)
		}
	}
	s.mu.Unlock()

	for _, r := range due {
		if _, err := s.queue.Enqueue(ctx, r.rule.Type, r.rule.Payload); err != nil {
			logger.Jobs().Error().Err(err).Str("rule_id", r.rule.ID).Str("job_type", r.rule.Type).Msg("scheduled enqueue failed")
		}
	}
}

// Stop halts the tick loop.
func (s *LocalScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Package pipeline owns the request-pipeline's fire-and-forget write paths:
// the raw-metric buffer and the log sink. Both are bounded channels drained
// by one dedicated goroutine each, owned by a single Coordinator value
// constructed once at boot and threaded through the middleware closures —
// never a package-level variable.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/obsplane/observability/internal/db"
	"github.com/obsplane/observability/internal/jobs"
	"github.com/obsplane/observability/internal/logger"
	"github.com/obsplane/observability/internal/models"
)

const (
	logChannelSize    = 2000
	metricChannelSize = 2000
	snapshotChannelSize = 500
)

// Coordinator owns the buffered channels and their drain goroutines.
type Coordinator struct {
	logGateway      *db.Gateway
	snapshotGateway *db.Gateway
	enqueuer        jobs.Queue
	batchSize       int
	flushInterval   time.Duration

	logCh      chan models.Log
	metricCh   chan models.RawMetric
	snapshotCh chan models.RequestSnapshot

	droppedLogs      int64
	droppedMetrics   int64
	droppedSnapshots int64

	metricBuf   []models.RawMetric
	metricMu    sync.Mutex

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewCoordinator allocates the channels and starts the drain goroutines.
// Stop must be called on shutdown to flush and terminate cleanly.
func NewCoordinator(logGateway, snapshotGateway *db.Gateway, enqueuer jobs.Queue, batchSize int, flushInterval time.Duration) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	co := &Coordinator{
		logGateway:      logGateway,
		snapshotGateway: snapshotGateway,
		enqueuer:        enqueuer,
		batchSize:       batchSize,
		flushInterval:   flushInterval,
		logCh:           make(chan models.Log, logChannelSize),
		metricCh:        make(chan models.RawMetric, metricChannelSize),
		snapshotCh:      make(chan models.RequestSnapshot, snapshotChannelSize),
		cancel:          cancel,
	}

	co.wg.Add(3)
	go co.drainLogs(ctx)
	go co.drainSnapshots(ctx)
	go co.drainMetrics(ctx)

	return co
}

// EmitLog appends a log line without blocking the response path; on a full
// channel the line is dropped and the drop counter is incremented.
func (co *Coordinator) EmitLog(l models.Log) {
	select {
	case co.logCh <- l:
	default:
		atomic.AddInt64(&co.droppedLogs, 1)
	}
}

// EmitSnapshot appends a captured request/response pair without blocking.
func (co *Coordinator) EmitSnapshot(s models.RequestSnapshot) {
	select {
	case co.snapshotCh <- s:
	default:
		atomic.AddInt64(&co.droppedSnapshots, 1)
	}
}

// EmitMetric appends a raw metric without blocking.
func (co *Coordinator) EmitMetric(m models.RawMetric) {
	select {
	case co.metricCh <- m:
	default:
		atomic.AddInt64(&co.droppedMetrics, 1)
	}
}

// Stats reports the drop counters, exposed alongside WorkerStats.
type Stats struct {
	DroppedLogs      int64
	DroppedMetrics   int64
	DroppedSnapshots int64
}

func (co *Coordinator) Stats() Stats {
	return Stats{
		DroppedLogs:      atomic.LoadInt64(&co.droppedLogs),
		DroppedMetrics:   atomic.LoadInt64(&co.droppedMetrics),
		DroppedSnapshots: atomic.LoadInt64(&co.droppedSnapshots),
	}
}

func (co *Coordinator) drainLogs(ctx context.Context) {
	defer co.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case l := <-co.logCh:
			co.persistLog(l)
		}
	}
}

func (co *Coordinator) persistLog(l models.Log) {
	if co.logGateway == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := co.logGateway.Create(ctx, map[string]any{
		"source":     l.Source,
		"level":      string(l.Level),
		"message":    l.Message,
		"attributes": l.Attributes,
	})
	if err != nil {
		logger.Pipeline().Warn().Err(err).Msg("failed to persist log line")
	}
}

func (co *Coordinator) drainSnapshots(ctx context.Context) {
	defer co.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-co.snapshotCh:
			co.persistSnapshot(s)
		}
	}
}

func (co *Coordinator) persistSnapshot(s models.RequestSnapshot) {
	if co.snapshotGateway == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := co.snapshotGateway.Create(ctx, map[string]any{
		"method":           s.Method,
		"path":             s.Path,
		"query":            s.Query,
		"headers":          s.Headers,
		"body":             s.Body,
		"user_id":          s.UserID,
		"version":          s.Version,
		"environment":      s.Environment,
		"response_status":  s.ResponseStatus,
		"response_headers": s.ResponseHeaders,
		"response_body":    s.ResponseBody,
		"duration_ms":      s.DurationMs,
		"geo":              s.Geo,
	})
	if err != nil {
		logger.Pipeline().Warn().Err(err).Msg("failed to persist request snapshot")
	}
}

// drainMetrics accumulates raw metrics into a buffer and flushes a batch
// into a PROCESS_RAW_METRICS job either when the buffer reaches 2×batchSize
// or on every tick of flushInterval, whichever comes first.
func (co *Coordinator) drainMetrics(ctx context.Context) {
	defer co.wg.Done()
	ticker := time.NewTicker(co.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			co.metricMu.Lock()
			for drained := false; !drained; {
				select {
				case m := <-co.metricCh:
					co.metricBuf = append(co.metricBuf, m)
				default:
					drained = true
				}
			}
			co.metricMu.Unlock()
			co.flushMetrics(context.Background())
			return
		case m := <-co.metricCh:
			co.metricMu.Lock()
			co.metricBuf = append(co.metricBuf, m)
			full := len(co.metricBuf) >= 2*co.batchSize
			co.metricMu.Unlock()
			if full {
				co.flushMetrics(ctx)
			}
		case <-ticker.C:
			co.flushMetrics(ctx)
		}
	}
}

func (co *Coordinator) flushMetrics(ctx context.Context) {
	co.metricMu.Lock()
	if len(co.metricBuf) == 0 {
		co.metricMu.Unlock()
		return
	}
	n := co.batchSize
	if n > len(co.metricBuf) {
		n = len(co.metricBuf)
	}
	batch := co.metricBuf[:n]
	remaining := append([]models.RawMetric{}, co.metricBuf[n:]...)
	co.metricBuf = remaining
	co.metricMu.Unlock()

	if co.enqueuer == nil {
		return
	}
	_, err := co.enqueuer.Enqueue(ctx, "PROCESS_RAW_METRICS", map[string]any{"metrics": batch})
	if err != nil {
		logger.Pipeline().Warn().Err(err).Int("batch_size", len(batch)).Msg("failed to enqueue raw metrics, re-prepending")
		co.metricMu.Lock()
		co.metricBuf = append(append([]models.RawMetric{}, batch...), co.metricBuf...)
		co.metricMu.Unlock()
	}
}

// Stop flushes a final metric batch, stops the scheduler-adjacent tickers,
// and waits for the drain goroutines to exit.
func (co *Coordinator) Stop(grace time.Duration) {
	co.cancel()
	done := make(chan struct{})
	go func() {
		co.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		logger.Pipeline().Warn().Msg("coordinator shutdown grace period exceeded")
	}
}

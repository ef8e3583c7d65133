package workpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Pool is an in-memory worker pool. Submit blocks while the queue is full,
// which pushes back on the producer instead of dropping work.
type Pool struct {
	queue   chan Task
	config  Config
	logger  *slog.Logger
	metrics MetricsRecorder

	// Internal counters (for Stats())
	queued    atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
	active    atomic.Int64

	mu       sync.RWMutex // guards closed against in-flight Submit
	closed   bool
	wg       sync.WaitGroup
	shutdown chan struct{}
}

// MetricsRecorder is an optional interface for recording pool metrics.
type MetricsRecorder interface {
	RecordPoolQueueSize(ctx context.Context, pool string, size int64)
}

// New starts a pool. metrics may be nil.
func New(cfg Config, metrics MetricsRecorder) *Pool {
	cfg = cfg.withDefaults()

	p := &Pool{
		queue:    make(chan Task, cfg.BufferSize),
		config:   cfg,
		logger:   slog.With("component", "workpool", "pool", cfg.Name),
		metrics:  metrics,
		shutdown: make(chan struct{}),
	}

	// Start workers
	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker()
	}

	// Start queue size reporter if metrics enabled
	if metrics != nil {
		go p.reportQueueSize()
	}

	p.logger.Debug("Pool started", "workers", cfg.Workers, "buffer", cfg.BufferSize)
	return p
}

// reportQueueSize periodically reports the queue size metric.
func (p *Pool) reportQueueSize() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.metrics.RecordPoolQueueSize(context.Background(), p.config.Name, int64(len(p.queue)))
		}
	}
}

// Submit queues a task, waiting for room. It returns ctx.Err() if ctx ends
// first and ErrClosed after Close.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.queue <- task:
		p.queued.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	return Stats{
		Name:       p.config.Name,
		Workers:    p.config.Workers,
		QueueDepth: len(p.queue),
		Active:     p.active.Load(),
		Queued:     p.queued.Load(),
		Completed:  p.completed.Load(),
		Panicked:   p.panicked.Load(),
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
// The context deadline controls how long to wait for drain.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil // already closed
	}
	p.closed = true
	close(p.queue)
	close(p.shutdown)
	p.mu.Unlock()

	// Wait for workers with timeout
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Debug("Pool shutdown complete",
			"completed", p.completed.Load(),
			"panicked", p.panicked.Load(),
		)
		return nil
	case <-ctx.Done():
		p.logger.Warn("Pool shutdown timed out", "remaining", len(p.queue), "active", p.active.Load())
		return ctx.Err()
	}
}

// worker runs tasks until the queue is closed and drained.
func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.queue {
		p.run(task)
	}
}

func (p *Pool) run(task Task) {
	p.active.Add(1)
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			p.logger.Error("Task panicked", "panic", fmt.Sprint(r))
		}
		p.active.Add(-1)
		p.completed.Add(1)
	}()
	task()
}

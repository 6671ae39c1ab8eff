// Package dispatch runs fire-and-forget background tasks on a bounded pool.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"purchase-fulfillment/internal/common/logger"
	"purchase-fulfillment/internal/common/metrics"
)

// Task is a unit of background work. Run receives a context bounded by the
// dispatcher's task timeout, detached from the request that submitted it.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

type Config struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
}

// Dispatcher never blocks a submitter: a full queue drops the task.
type Dispatcher struct {
	cfg    Config
	logger logger.Logger
	queue  chan Task
	pool   *pool.Pool

	mu     sync.RWMutex
	closed bool

	drainOnce sync.Once
	drained   chan struct{}
}

func New(cfg Config, log logger.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 10 * time.Second
	}

	d := &Dispatcher{
		cfg:     cfg,
		logger:  log.WithFields(map[string]interface{}{"component": "dispatcher"}),
		queue:   make(chan Task, cfg.QueueSize),
		pool:    pool.New().WithMaxGoroutines(cfg.Workers),
		drained: make(chan struct{}),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.pool.Go(d.work)
	}
	return d
}

// Submit enqueues t and reports whether it was accepted.
func (d *Dispatcher) Submit(t Task) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("Dispatcher closed, dropping task", map[string]interface{}{"task": t.Name})
		return false
	}

	select {
	case d.queue <- t:
		metrics.DispatcherQueueDepth.Set(float64(len(d.queue)))
		return true
	default:
		d.logger.Error("Dispatcher queue full, dropping task", map[string]interface{}{
			"task":      t.Name,
			"queueSize": d.cfg.QueueSize,
		})
		return false
	}
}

// Close stops accepting tasks and waits for queued ones until ctx expires.
// It may be called again after an interrupted drain.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	// pool.Wait must run exactly once.
	d.drainOnce.Do(func() {
		go func() {
			d.pool.Wait()
			close(d.drained)
		}()
	})

	select {
	case <-d.drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher drain interrupted with %d tasks queued: %w", len(d.queue), ctx.Err())
	}
}

func (d *Dispatcher) work() {
	for t := range d.queue {
		metrics.DispatcherQueueDepth.Set(float64(len(d.queue)))
		d.run(t)
	}
}

func (d *Dispatcher) run(t Task) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.TaskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Background task panicked", map[string]interface{}{
				"task":  t.Name,
				"panic": fmt.Sprint(r),
			})
		}
	}()

	start := time.Now()
	if err := t.Run(ctx); err != nil {
		d.logger.Error("Background task failed", map[string]interface{}{
			"task":     t.Name,
			"error":    err.Error(),
			"duration": time.Since(start).String(),
		})
		return
	}
	d.logger.Debug("Background task completed", map[string]interface{}{
		"task":     t.Name,
		"duration": time.Since(start).String(),
	})
}

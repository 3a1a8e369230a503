// Package queue implements the long-running loop that claims pending
// executions and hands them to the Execution Engine.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/loomwork/loom/internal/metrics"
	"github.com/loomwork/loom/internal/workflow"
)

// Executor is the narrow interface the Processor depends on, avoiding
// an import cycle back to the engine package.
type Executor interface {
	Execute(ctx context.Context, executionID string) error
}

// Config controls the Processor's poll cadence.
type Config struct {
	IdleInterval  time.Duration
	ErrorInterval time.Duration
}

// DefaultConfig returns the Queue Processor's named defaults.
func DefaultConfig() Config {
	return Config{IdleInterval: time.Second, ErrorInterval: 5 * time.Second}
}

// Processor is a single long-running cooperative loop: claim, execute,
// repeat. Running N Processors concurrently is safe because
// Store.ClaimNextPending is atomic and no execution shares mutable
// state with its siblings.
type Processor struct {
	store    workflow.Store
	executor Executor
	config   Config
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// New builds a Processor over an explicit Store and Executor. metrics
// may be nil, in which case the Processor simply reports no queue
// depth gauge.
func New(store workflow.Store, executor Executor, config Config, m *metrics.Metrics, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{store: store, executor: executor, config: config, metrics: m, logger: logger, done: make(chan struct{})}
}

// Run blocks, polling until ctx is cancelled or Stop is called. On
// return, the current in-flight execution (if any) has already
// finished a full Execute call — the loop only checks its stop flag
// at the head of each tick, never mid-execution.
func (p *Processor) Run(ctx context.Context) {
	defer close(p.done)
	for {
		if ctx.Err() != nil || p.isStopped() {
			return
		}

		p.recordQueueDepth(ctx)

		id, err := p.store.ClaimNextPending(ctx)
		if err != nil {
			if errors.Is(err, workflow.ErrNoPendingExecution) {
				p.sleep(ctx, p.config.IdleInterval)
				continue
			}
			p.logger.Error("claim next pending failed", "error", err)
			p.sleep(ctx, p.config.ErrorInterval)
			continue
		}

		if err := p.executor.Execute(ctx, id); err != nil {
			p.logger.Error("execution failed", "execution_id", id, "error", err)
			p.sleep(ctx, p.config.ErrorInterval)
		}
	}
}

// Stop flips the loop's stop flag; Run exits at the head of its next
// tick, after any in-flight execution has completed.
func (p *Processor) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}

// Wait blocks until Run has returned.
func (p *Processor) Wait() { <-p.done }

func (p *Processor) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// recordQueueDepth refreshes the queue depth gauge. Errors are logged,
// not fatal: a stale gauge reading is preferable to interrupting the
// claim loop over a metrics-only failure.
func (p *Processor) recordQueueDepth(ctx context.Context) {
	if p.metrics == nil {
		return
	}
	depth, err := p.store.CountPendingExecutions(ctx)
	if err != nil {
		p.logger.Warn("count pending executions failed", "error", err)
		return
	}
	p.metrics.SetQueueDepth(float64(depth))
}

func (p *Processor) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// RecoverStuckExecutions runs the crash-recovery startup scan: any
// execution left running from a prior process crash is marked failed,
// never resumed. Call once, before Run, on process start.
func RecoverStuckExecutions(ctx context.Context, store workflow.Store, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	n, err := store.MarkStuckRunningAsFailed(ctx, "execution was running when the process restarted")
	if err != nil {
		logger.Error("startup recovery scan failed", "error", err)
		return
	}
	if n > 0 {
		logger.Warn("marked stuck running executions as failed on startup", "count", n)
	}
}

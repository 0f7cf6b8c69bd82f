package outreach

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Executor defaults.
const (
	DefaultWorkers   = 4
	DefaultQueueSize = 64
)

var (
	// ErrQueueFull is returned by Submit when the backlog is at capacity.
	ErrQueueFull = eris.New("outreach: executor queue is full")
	// ErrExecutorStopped is returned by Submit once Run has begun draining.
	ErrExecutorStopped = eris.New("outreach: executor stopped")
)

// Processor runs one pipeline pass. *Pipeline satisfies it.
type Processor interface {
	Process(ctx context.Context, raw string) Outcome
}

// Executor runs submitted inputs in the background on a fixed worker pool,
// so that a trigger can acknowledge before the run finishes.
type Executor struct {
	proc    Processor
	workers int
	queue   chan string

	mu      sync.RWMutex
	stopped bool
}

// NewExecutor creates an Executor. Non-positive sizes take the defaults.
func NewExecutor(proc Processor, workers, queueSize int) *Executor {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Executor{
		proc:    proc,
		workers: workers,
		queue:   make(chan string, queueSize),
	}
}

// Submit enqueues raw without blocking.
func (e *Executor) Submit(raw string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.stopped {
		return ErrExecutorStopped
	}
	select {
	case e.queue <- raw:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued, not yet started inputs.
func (e *Executor) Pending() int {
	return len(e.queue)
}

// Run processes the queue until ctx is cancelled, then stops accepting work
// and drains what is already queued before returning. Runs are not
// cancelled by ctx; each one proceeds to its terminal state.
func (e *Executor) Run(ctx context.Context) error {
	taskCtx := context.WithoutCancel(ctx)

	g := new(errgroup.Group)
	for i := 0; i < e.workers; i++ {
		g.Go(func() error {
			for raw := range e.queue {
				e.runTask(taskCtx, i, raw)
			}
			return nil
		})
	}

	<-ctx.Done()
	e.stop()
	zap.L().Info("outreach: executor draining", zap.Int("pending", e.Pending()))

	return g.Wait()
}

func (e *Executor) stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.stopped {
		e.stopped = true
		close(e.queue)
	}
}

func (e *Executor) runTask(ctx context.Context, worker int, raw string) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("outreach: task panicked", zap.Int("worker", worker), zap.Any("panic", r))
		}
	}()

	out := e.proc.Process(ctx, raw)
	zap.L().Info("outreach: run finished",
		zap.Int("worker", worker),
		zap.String("run_id", out.RunID),
		zap.String("status", string(out.Status)),
		zap.Bool("audited", out.Audited),
	)
}

package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"room-booking/internal/data/entity"
	"room-booking/pkg/clock"

	"go.uber.org/zap"
)

// Runner polls the store for due tasks and dispatches them to handlers.
type Runner struct {
	store       Store
	clock       clock.Clock
	log         *zap.Logger
	interval    time.Duration
	lease       time.Duration
	batchSize   int
	concurrency int

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

type RunnerOption func(*Runner)

func WithPollInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithLease sets how long a claimed task stays invisible to other runners.
func WithLease(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.lease = d
		}
	}
}

func WithBatchSize(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func NewRunner(store Store, clk clock.Clock, log *zap.Logger, opts ...RunnerOption) *Runner {
	if clk == nil {
		clk = clock.NewSystem()
	}
	r := &Runner{
		store:       store,
		clock:       clk,
		log:         log.With(zap.String("component", "task_runner")),
		interval:    2 * time.Second,
		lease:       time.Minute,
		batchSize:   25,
		concurrency: 4,
		handlers:    make(map[string]HandlerFunc),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds a handler to a task name. Registering a name twice replaces
// the previous handler.
func (r *Runner) Register(name string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

func (r *Runner) handler(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Run polls until ctx is canceled, then waits for in-flight handlers.
func (r *Runner) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	// kick immediately
	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	for {
		n, err := r.RunOnce(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				r.log.Error("claim due tasks failed", zap.Error(err))
			}
			return
		}
		// drain a backlog without waiting for the next tick
		if n < r.batchSize || ctx.Err() != nil {
			return
		}
	}
}

// RunOnce claims one batch of due tasks, processes it and returns the number
// of tasks claimed.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	claimed, err := r.store.ClaimDue(ctx, r.clock.Now(), r.lease, r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(claimed) == 0 {
		return 0, nil
	}

	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	for _, task := range claimed {
		task := task
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			r.process(ctx, task)
		}()
	}
	wg.Wait()

	return len(claimed), nil
}

func (r *Runner) process(ctx context.Context, task *entity.DeferredTask) {
	log := r.log.With(
		zap.String("task", task.Name),
		zap.String("task_id", task.ID.String()),
		zap.Int("attempt", task.Attempts),
	)

	// Finishing writes use a context that survives shutdown so a handled
	// task is not redelivered only because the process is stopping.
	finishCtx := context.WithoutCancel(ctx)

	h, ok := r.handler(task.Name)
	if !ok {
		log.Error("no handler registered, task dropped")
		if err := r.store.MarkFailed(finishCtx, task.ID, "no handler registered", r.clock.Now()); err != nil {
			log.Error("mark task failed", zap.Error(err))
		}
		return
	}

	err := r.invoke(ctx, h, task)
	now := r.clock.Now()
	if err == nil {
		if err := r.store.MarkDone(finishCtx, task.ID, now); err != nil {
			log.Error("mark task done", zap.Error(err))
		}
		return
	}

	// Shutdown interrupted the handler; the claim does not count.
	if ctx.Err() != nil {
		log.Info("task interrupted by shutdown, released", zap.Error(err))
		if err := r.store.Release(finishCtx, task.ID, now); err != nil {
			log.Error("release task", zap.Error(err))
		}
		return
	}

	if task.Attempts >= task.MaxAttempts {
		log.Error("task exhausted its retries",
			zap.Error(err),
			zap.Int("max_attempts", task.MaxAttempts),
		)
		if err := r.store.MarkFailed(finishCtx, task.ID, err.Error(), now); err != nil {
			log.Error("mark task failed", zap.Error(err))
		}
		return
	}

	runAt := now.Add(Backoff(task.BaseDelay, task.Attempts))
	log.Warn("task failed, retrying", zap.Error(err), zap.Time("run_at", runAt))
	if err := r.store.Reschedule(finishCtx, task.ID, runAt, err.Error(), now); err != nil {
		log.Error("reschedule task", zap.Error(err))
	}
}

func (r *Runner) invoke(ctx context.Context, h HandlerFunc, task *entity.DeferredTask) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h(ctx, task.Payload)
}

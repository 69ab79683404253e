package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Periodic enqueues a named task every Interval, starting immediately.
type Periodic struct {
	Scheduler Scheduler
	Name      string
	Interval  time.Duration
	Options   []Option
	Log       *zap.Logger
	Now       func() time.Time
}

func (p *Periodic) Run(ctx context.Context) error {
	t := time.NewTicker(p.Interval)
	defer t.Stop()

	p.enqueue(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.enqueue(ctx)
		}
	}
}

func (p *Periodic) enqueue(ctx context.Context) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	opts := append([]Option{UniqueKey("periodic:" + p.Name)}, p.Options...)
	if _, err := p.Scheduler.Schedule(ctx, p.Name, nil, now(), opts...); err != nil && ctx.Err() == nil {
		if p.Log != nil {
			p.Log.Error("periodic enqueue failed", zap.String("task", p.Name), zap.Error(err))
		}
	}
}

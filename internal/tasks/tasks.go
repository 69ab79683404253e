// Package tasks is a durable deferred-task queue backed by the deferred_tasks
// table. Producers call Scheduler.Schedule, usually inside the transaction
// that creates the state the task acts on; a Runner claims due tasks and
// dispatches them to registered handlers with at-least-once delivery.
package tasks

import (
	"context"
	"encoding/json"
	"time"

	"room-booking/internal/data/entity"

	"github.com/google/uuid"
)

// HandlerFunc processes one task payload. A non-nil error schedules a retry
// until the task's attempt budget is spent.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// Scheduler enqueues a named task to run no earlier than notBefore.
type Scheduler interface {
	Schedule(ctx context.Context, name string, payload any, notBefore time.Time, opts ...Option) (uuid.UUID, error)
}

// Store is the persistence the queue needs.
type Store interface {
	Enqueue(ctx context.Context, task *entity.DeferredTask) (bool, error)
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*entity.DeferredTask, error)
	MarkDone(ctx context.Context, id uuid.UUID, now time.Time) error
	Reschedule(ctx context.Context, id uuid.UUID, runAt time.Time, lastErr string, now time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastErr string, now time.Time) error
	Release(ctx context.Context, id uuid.UUID, now time.Time) error
}

const (
	DefaultMaxAttempts = 1
	DefaultBaseDelay   = time.Minute
	maxBackoff         = time.Hour
)

type options struct {
	maxAttempts int
	baseDelay   time.Duration
	uniqueKey   string
}

type Option func(*options)

// MaxAttempts bounds how many times the task is delivered.
func MaxAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// BaseDelay is the wait before the first retry; later retries double it.
func BaseDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.baseDelay = d
		}
	}
}

// UniqueKey drops the enqueue while another queued or running task holds key.
func UniqueKey(key string) Option {
	return func(o *options) {
		o.uniqueKey = key
	}
}

// Backoff returns the delay before retrying after the given failed attempt
// (1-based): base * 2^(attempt-1), capped at one hour.
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

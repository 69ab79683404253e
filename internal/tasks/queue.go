package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"room-booking/internal/data/entity"
	"room-booking/pkg/clock"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Queue is the Scheduler backed by a Store.
type Queue struct {
	store Store
	clock clock.Clock
	log   *zap.Logger
}

func NewQueue(store Store, clk clock.Clock, log *zap.Logger) *Queue {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Queue{
		store: store,
		clock: clk,
		log:   log.With(zap.String("component", "task_queue")),
	}
}

// Schedule stores the task. Payloads are JSON encoded; a nil payload becomes
// an empty object. When UniqueKey suppressed the insert the returned id is
// uuid.Nil.
func (q *Queue) Schedule(ctx context.Context, name string, payload any, notBefore time.Time, opts ...Option) (uuid.UUID, error) {
	o := options{maxAttempts: DefaultMaxAttempts, baseDelay: DefaultBaseDelay}
	for _, opt := range opts {
		opt(&o)
	}

	raw := json.RawMessage("{}")
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return uuid.Nil, fmt.Errorf("encode %s payload: %w", name, err)
		}
		raw = b
	}

	now := q.clock.Now()
	task := &entity.DeferredTask{
		ID:          uuid.New(),
		Name:        name,
		Payload:     raw,
		RunAt:       notBefore.UTC(),
		MaxAttempts: o.maxAttempts,
		BaseDelay:   o.baseDelay,
		Status:      entity.TaskStatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if o.uniqueKey != "" {
		key := o.uniqueKey
		task.DedupeKey = &key
	}

	inserted, err := q.store.Enqueue(ctx, task)
	if err != nil {
		return uuid.Nil, err
	}
	if !inserted {
		q.log.Debug("task already pending",
			zap.String("task", name),
			zap.String("dedupe_key", o.uniqueKey),
		)
		return uuid.Nil, nil
	}

	q.log.Debug("task scheduled",
		zap.String("task", name),
		zap.String("task_id", task.ID.String()),
		zap.Time("run_at", task.RunAt),
	)
	return task.ID, nil
}

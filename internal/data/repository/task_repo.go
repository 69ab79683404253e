package repository

import (
	"context"
	"fmt"
	"time"

	"room-booking/internal/data/entity"
	"room-booking/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TaskRepository persists deferred tasks in the deferred_tasks table.
type TaskRepository interface {
	Enqueue(ctx context.Context, task *entity.DeferredTask) (bool, error)
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*entity.DeferredTask, error)
	MarkDone(ctx context.Context, id uuid.UUID, now time.Time) error
	Reschedule(ctx context.Context, id uuid.UUID, runAt time.Time, lastErr string, now time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastErr string, now time.Time) error
	Release(ctx context.Context, id uuid.UUID, now time.Time) error
}

type taskRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewTaskRepository(db database.PgxIface, log *zap.Logger) TaskRepository {
	return &taskRepository{
		db:  db,
		log: log.With(zap.String("repository", "task")),
	}
}

// Enqueue inserts task. When a queued or running task already holds the same
// dedupe key nothing is written and false is returned.
func (r *taskRepository) Enqueue(ctx context.Context, task *entity.DeferredTask) (bool, error) {
	query := `
		INSERT INTO deferred_tasks (id, name, payload, run_at, attempts, max_attempts,
		                            base_delay_seconds, status, dedupe_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, 'queued', $7, $8, $8)
		ON CONFLICT (dedupe_key) WHERE dedupe_key IS NOT NULL AND status IN ('queued', 'running')
		DO NOTHING
	`

	payload := task.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	result, err := conn(ctx, r.db).Exec(ctx, query,
		task.ID,
		task.Name,
		string(payload),
		task.RunAt,
		task.MaxAttempts,
		int(task.BaseDelay/time.Second),
		task.DedupeKey,
		task.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to enqueue task",
			zap.Error(err),
			zap.String("task", task.Name),
		)
		return false, fmt.Errorf("enqueue task %s: %w", task.Name, err)
	}

	return result.RowsAffected() == 1, nil
}

// ClaimDue leases up to limit due tasks. A task is due when it is queued with
// run_at <= now, or running with an expired lease and attempts left. Each
// claim counts as an attempt. Running tasks whose lease expired on their last
// attempt are marked failed first.
func (r *taskRepository) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*entity.DeferredTask, error) {
	exhausted := `
		UPDATE deferred_tasks
		SET status = 'failed',
		    last_error = 'lease expired after final attempt',
		    locked_until = NULL,
		    updated_at = $1
		WHERE status = 'running'
		  AND locked_until < $1
		  AND attempts >= max_attempts
	`
	tag, err := conn(ctx, r.db).Exec(ctx, exhausted, now)
	if err != nil {
		r.log.Error("Failed to fail exhausted tasks", zap.Error(err))
		return nil, fmt.Errorf("fail exhausted tasks: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		r.log.Warn("Tasks lost their lease on the final attempt", zap.Int64("count", n))
	}

	query := `
		UPDATE deferred_tasks t
		SET status = 'running',
		    attempts = t.attempts + 1,
		    locked_until = $2,
		    updated_at = $1
		FROM (
			SELECT id
			FROM deferred_tasks
			WHERE (status = 'queued' AND run_at <= $1)
			   OR (status = 'running' AND locked_until < $1 AND attempts < max_attempts)
			ORDER BY run_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		) due
		WHERE t.id = due.id
		RETURNING t.id, t.name, t.payload, t.run_at, t.attempts, t.max_attempts,
		          t.base_delay_seconds, t.status, t.dedupe_key, t.last_error,
		          t.locked_until, t.created_at, t.updated_at
	`

	rows, err := conn(ctx, r.db).Query(ctx, query, now, now.Add(lease), limit)
	if err != nil {
		r.log.Error("Failed to claim tasks", zap.Error(err))
		return nil, fmt.Errorf("claim tasks: %w", err)
	}
	defer rows.Close()

	var claimed []*entity.DeferredTask
	for rows.Next() {
		var (
			t            entity.DeferredTask
			payload      []byte
			delaySeconds int
		)
		if err := rows.Scan(
			&t.ID,
			&t.Name,
			&payload,
			&t.RunAt,
			&t.Attempts,
			&t.MaxAttempts,
			&delaySeconds,
			&t.Status,
			&t.DedupeKey,
			&t.LastError,
			&t.LockedUntil,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		t.Payload = payload
		t.BaseDelay = time.Duration(delaySeconds) * time.Second
		claimed = append(claimed, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task rows: %w", err)
	}

	return claimed, nil
}

func (r *taskRepository) MarkDone(ctx context.Context, id uuid.UUID, now time.Time) error {
	query := `
		UPDATE deferred_tasks
		SET status = 'done', locked_until = NULL, updated_at = $2
		WHERE id = $1
	`
	if _, err := conn(ctx, r.db).Exec(ctx, query, id, now); err != nil {
		r.log.Error("Failed to mark task done", zap.Error(err), zap.String("task_id", id.String()))
		return fmt.Errorf("mark task %s done: %w", id, err)
	}
	return nil
}

func (r *taskRepository) Reschedule(ctx context.Context, id uuid.UUID, runAt time.Time, lastErr string, now time.Time) error {
	query := `
		UPDATE deferred_tasks
		SET status = 'queued', run_at = $2, last_error = $3, locked_until = NULL, updated_at = $4
		WHERE id = $1
	`
	if _, err := conn(ctx, r.db).Exec(ctx, query, id, runAt, lastErr, now); err != nil {
		r.log.Error("Failed to reschedule task", zap.Error(err), zap.String("task_id", id.String()))
		return fmt.Errorf("reschedule task %s: %w", id, err)
	}
	return nil
}

func (r *taskRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastErr string, now time.Time) error {
	query := `
		UPDATE deferred_tasks
		SET status = 'failed', last_error = $2, locked_until = NULL, updated_at = $3
		WHERE id = $1
	`
	if _, err := conn(ctx, r.db).Exec(ctx, query, id, lastErr, now); err != nil {
		r.log.Error("Failed to mark task failed", zap.Error(err), zap.String("task_id", id.String()))
		return fmt.Errorf("mark task %s failed: %w", id, err)
	}
	return nil
}

// Release puts a claimed task back in the queue without counting the claim as
// an attempt. run_at is left unchanged so the task is due again immediately.
func (r *taskRepository) Release(ctx context.Context, id uuid.UUID, now time.Time) error {
	query := `
		UPDATE deferred_tasks
		SET status = 'queued',
		    attempts = GREATEST(attempts - 1, 0),
		    locked_until = NULL,
		    updated_at = $2
		WHERE id = $1 AND status = 'running'
	`
	if _, err := conn(ctx, r.db).Exec(ctx, query, id, now); err != nil {
		r.log.Error("Failed to release task", zap.Error(err), zap.String("task_id", id.String()))
		return fmt.Errorf("release task %s: %w", id, err)
	}
	return nil
}

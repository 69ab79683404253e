package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusQueued  TaskStatus = "queued"
	TaskStatusRunning TaskStatus = "running"
	TaskStatusDone    TaskStatus = "done"
	TaskStatusFailed  TaskStatus = "failed"
)

// DeferredTask is a durable callback scheduled to run no earlier than RunAt.
type DeferredTask struct {
	ID          uuid.UUID       `db:"id"`
	Name        string          `db:"name"`
	Payload     json.RawMessage `db:"payload"`
	RunAt       time.Time       `db:"run_at"`
	Attempts    int             `db:"attempts"`
	MaxAttempts int             `db:"max_attempts"`
	BaseDelay   time.Duration   `db:"base_delay_seconds"`
	Status      TaskStatus      `db:"status"`
	DedupeKey   *string         `db:"dedupe_key"`
	LastError   *string         `db:"last_error"`
	LockedUntil *time.Time      `db:"locked_until"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

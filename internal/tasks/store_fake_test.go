package tasks

import (
	"context"
	"sort"
	"sync"
	"time"

	"room-booking/internal/data/entity"

	"github.com/google/uuid"
)

type memStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*entity.DeferredTask
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[uuid.UUID]*entity.DeferredTask)}
}

func (s *memStore) Enqueue(_ context.Context, task *entity.DeferredTask) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task.DedupeKey != nil {
		for _, t := range s.tasks {
			if t.DedupeKey != nil && *t.DedupeKey == *task.DedupeKey &&
				(t.Status == entity.TaskStatusQueued || t.Status == entity.TaskStatusRunning) {
				return false, nil
			}
		}
	}
	cp := *task
	cp.Status = entity.TaskStatusQueued
	s.tasks[task.ID] = &cp
	return true, nil
}

func (s *memStore) ClaimDue(_ context.Context, now time.Time, lease time.Duration, limit int) ([]*entity.DeferredTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*entity.DeferredTask
	for _, t := range s.tasks {
		queuedDue := t.Status == entity.TaskStatusQueued && !t.RunAt.After(now)
		leaseLost := t.Status == entity.TaskStatusRunning && t.LockedUntil != nil && t.LockedUntil.Before(now)
		if leaseLost && t.Attempts >= t.MaxAttempts {
			msg := "lease expired after final attempt"
			t.Status = entity.TaskStatusFailed
			t.LastError = &msg
			t.LockedUntil = nil
			continue
		}
		if queuedDue || leaseLost {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	out := make([]*entity.DeferredTask, 0, len(due))
	for _, t := range due {
		until := now.Add(lease)
		t.Status = entity.TaskStatusRunning
		t.Attempts++
		t.LockedUntil = &until
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) MarkDone(_ context.Context, id uuid.UUID, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id].Status = entity.TaskStatusDone
	s.tasks[id].LockedUntil = nil
	return nil
}

func (s *memStore) Reschedule(_ context.Context, id uuid.UUID, runAt time.Time, lastErr string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[id]
	t.Status = entity.TaskStatusQueued
	t.RunAt = runAt
	t.LastError = &lastErr
	t.LockedUntil = nil
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, id uuid.UUID, lastErr string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[id]
	t.Status = entity.TaskStatusFailed
	t.LastError = &lastErr
	t.LockedUntil = nil
	return nil
}

func (s *memStore) Release(_ context.Context, id uuid.UUID, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[id]
	t.Status = entity.TaskStatusQueued
	if t.Attempts > 0 {
		t.Attempts--
	}
	t.LockedUntil = nil
	return nil
}

func (s *memStore) get(id uuid.UUID) entity.DeferredTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.tasks[id]
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

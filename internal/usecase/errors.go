package usecase

import (
	"errors"
	"fmt"
)

// ValidationError is a rejected request; Reason is safe to show to clients.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// CollisionError reports that the requested slot overlaps an active
// reservation of the same room.
type CollisionError struct {
	RoomID        int64
	ConflictingID int64
}

func (e *CollisionError) Error() string {
	if e.ConflictingID == 0 {
		return fmt.Sprintf("time slot collides with an existing reservation in room %d", e.RoomID)
	}
	return fmt.Sprintf("time slot collides with reservation id=%d in room %d", e.ConflictingID, e.RoomID)
}

type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// AuthorizationError means the principal may not act on the resource.
type AuthorizationError struct {
	Action string
}

func (e *AuthorizationError) Error() string {
	if e.Action == "" {
		return "forbidden"
	}
	return fmt.Sprintf("not allowed to %s this reservation", e.Action)
}

// TransientStoreError wraps a store failure on the asynchronous path so the
// task queue retries it.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error {
	return e.Err
}

// ErrInvalidCredentials is returned by Login for unknown users and wrong passwords.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInactiveAccount is returned by Login for deactivated users.
var ErrInactiveAccount = errors.New("account is deactivated")

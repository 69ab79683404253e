package entity

import "time"

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCanceled  ReservationStatus = "canceled"
)

// Valid reports whether s is one of the known statuses.
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationStatusPending, ReservationStatusConfirmed, ReservationStatusCanceled:
		return true
	}
	return false
}

// Reservation is a booking of one room for the half-open range [StartAt, EndAt).
// HoldExpiresAt is only set while the reservation is pending.
type Reservation struct {
	Base
	UserID        int64             `db:"user_id"`
	RoomID        int64             `db:"room_id"`
	Status        ReservationStatus `db:"status"`
	StartAt       time.Time         `db:"start_at"`
	EndAt         time.Time         `db:"end_at"`
	HoldExpiresAt *time.Time        `db:"hold_expires_at"`
}

// HoldExpired reports whether r is a pending hold whose deadline is at or before now.
func (r *Reservation) HoldExpired(now time.Time) bool {
	return r.Status == ReservationStatusPending &&
		r.HoldExpiresAt != nil &&
		!r.HoldExpiresAt.After(now)
}

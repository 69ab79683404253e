package response

import (
	"time"

	"room-booking/internal/data/entity"
)

type ReservationResponse struct {
	ID            int64                    `json:"id"`
	UserID        int64                    `json:"user_id"`
	RoomID        int64                    `json:"room_id"`
	Status        entity.ReservationStatus `json:"status"`
	StartAt       time.Time                `json:"start_at"`
	EndAt         time.Time                `json:"end_at"`
	HoldExpiresAt *time.Time               `json:"hold_expires_at"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

// ReservationToResponse renders times in loc so clients see the booking zone.
func ReservationToResponse(r *entity.Reservation, loc *time.Location) ReservationResponse {
	if loc == nil {
		loc = time.UTC
	}
	resp := ReservationResponse{
		ID:        r.ID,
		UserID:    r.UserID,
		RoomID:    r.RoomID,
		Status:    r.Status,
		StartAt:   r.StartAt.In(loc),
		EndAt:     r.EndAt.In(loc),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.HoldExpiresAt != nil {
		h := r.HoldExpiresAt.In(loc)
		resp.HoldExpiresAt = &h
	}
	return resp
}

func ReservationsToResponse(list []*entity.Reservation, loc *time.Location) []ReservationResponse {
	out := make([]ReservationResponse, 0, len(list))
	for _, r := range list {
		out = append(out, ReservationToResponse(r, loc))
	}
	return out
}

package request

type CreateReservationRequest struct {
	RoomID  int64  `json:"room_id" validate:"required,gt=0"`
	StartAt string `json:"start_at" validate:"required"`
	EndAt   string `json:"end_at" validate:"required"`
}

// ReservationListQuery is the raw query string of GET /api/reservations.
// Unparseable values are ignored rather than rejected.
type ReservationListQuery struct {
	RoomID string
	Status string
	From   string
	To     string
	Mine   string
	PaginatedRequest
}

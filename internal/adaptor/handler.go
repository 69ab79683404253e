package adaptor

import (
	"time"

	"room-booking/internal/usecase"

	"go.uber.org/zap"
)

type Handler struct {
	Auth        *AuthHandler
	Reservation *ReservationHandler
	Admin       *AdminHandler
	Room        *RoomHandler
}

// NewHandler builds all HTTP handlers. loc is the zone times are rendered in
// and date-only query filters are expanded in.
func NewHandler(service *usecase.Service, loc *time.Location, log *zap.Logger) *Handler {
	return &Handler{
		Auth:        NewAuthHandler(service.Auth, log),
		Reservation: NewReservationHandler(service.Booking, service.Transition, loc, log),
		Admin:       NewAdminHandler(service.Expiry, log),
		Room:        NewRoomHandler(service.Room, log),
	}
}

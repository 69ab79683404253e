package wire

import (
	"net/http"

	"room-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireRoom(
	r chi.Router,
	roomHandler *adaptor.RoomHandler,
	authMw func(http.Handler) http.Handler,
) {
	// ==================== PROTECTED ROUTES ====================
	r.Route("/api/rooms", func(r chi.Router) {
		r.Use(authMw)

		r.Get("/", roomHandler.GetRooms)
		r.Get("/{id}", roomHandler.GetRoomByID)
	})
}

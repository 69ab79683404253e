package wire

import (
	"net/http"

	"room-booking/internal/adaptor"
	"room-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireReservation(
	r chi.Router,
	reservationHandler *adaptor.ReservationHandler,
	authMw func(http.Handler) http.Handler,
) {
	// ==================== PROTECTED ROUTES (require auth) ====================
	r.Route("/api/reservations", func(r chi.Router) {
		r.Use(authMw)

		// POST /api/reservations - Create a pending reservation with a hold
		r.Post("/", reservationHandler.Create)

		// GET /api/reservations - List with filters room_id, status, from, to, mine
		r.Get("/", reservationHandler.List)

		// Owner or admin only, enforced by the service
		r.Get("/{id}", reservationHandler.Get)
		r.Post("/{id}/confirm", reservationHandler.Confirm)
		r.Post("/{id}/cancel", reservationHandler.Cancel)
	})
}

func wireAdmin(
	r chi.Router,
	adminHandler *adaptor.AdminHandler,
	authMw func(http.Handler) http.Handler,
	log *zap.Logger,
) {
	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin", func(r chi.Router) {
		// Require both authentication AND admin role
		r.Use(authMw)
		r.Use(middleware.Admin(log))

		// POST /api/admin/reconcile - Run one reconciliation pass now
		r.Post("/reconcile", adminHandler.Reconcile)
	})
}

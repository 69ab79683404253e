package adaptor

import (
	"encoding/json"
	"net/http"
	"time"

	"room-booking/internal/data/entity"
	"room-booking/internal/dto/request"
	"room-booking/internal/dto/response"
	"room-booking/internal/usecase"
	"room-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/jinzhu/now"
	"go.uber.org/zap"
)

type ReservationHandler struct {
	booking    usecase.BookingService
	transition usecase.TransitionService
	loc        *time.Location
	log        *zap.Logger
}

func NewReservationHandler(booking usecase.BookingService, transition usecase.TransitionService, loc *time.Location, log *zap.Logger) *ReservationHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ReservationHandler{
		booking:    booking,
		transition: transition,
		loc:        loc,
		log:        log.With(zap.String("handler", "reservation")),
	}
}

// Create handles POST /api/reservations (protected)
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := utils.GetPrincipalFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.CreateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	// Validate request
	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	// Naive values are parsed as-is; the service rejects them after the
	// ordering and calendar-day checks.
	startAt, errStart := entity.ParseInstant(req.StartAt, nil)
	endAt, errEnd := entity.ParseInstant(req.EndAt, nil)
	if errStart != nil || errEnd != nil {
		fields := map[string]string{}
		if errStart != nil {
			fields["StartAt"] = "Invalid ISO 8601 timestamp"
		}
		if errEnd != nil {
			fields["EndAt"] = "Invalid ISO 8601 timestamp"
		}
		utils.ResponseBadRequest(w, "Validation failed", fields)
		return
	}

	reservation, err := h.booking.CreateReservation(r.Context(), usecase.CreateReservationInput{
		UserID:  principal.UserID,
		RoomID:  req.RoomID,
		StartAt: startAt,
		EndAt:   endAt,
	})
	if err != nil {
		writeServiceError(w, h.log, err, "create reservation")
		return
	}

	utils.ResponseCreated(w, "Reservation created", response.ReservationToResponse(reservation, h.loc))
}

// List handles GET /api/reservations (protected)
func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := utils.GetPrincipalFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	query := r.URL.Query()
	raw := request.ReservationListQuery{
		RoomID: query.Get("room_id"),
		Status: query.Get("status"),
		From:   query.Get("from"),
		To:     query.Get("to"),
		Mine:   query.Get("mine"),
		PaginatedRequest: request.PaginatedRequest{
			Page:    utils.ParseInt(query.Get("page"), 1),
			PerPage: utils.ParseInt(query.Get("per_page"), 20),
		},
	}

	q := h.parseListQuery(raw)
	list, total, err := h.booking.ListReservations(r.Context(), principal, q)
	if err != nil {
		writeServiceError(w, h.log, err, "list reservations")
		return
	}

	data := response.NewPaginatedResponse(
		response.ReservationsToResponse(list, h.loc),
		raw.Page,
		raw.Limit(),
		total,
	)
	utils.ResponseSuccess(w, "success", data)
}

// Get handles GET /api/reservations/{id} (protected, owner or admin)
func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	reservation, err := h.booking.GetReservation(r.Context(), principal, id)
	if err != nil {
		writeServiceError(w, h.log, err, "get reservation")
		return
	}

	utils.ResponseSuccess(w, "success", response.ReservationToResponse(reservation, h.loc))
}

// Confirm handles POST /api/reservations/{id}/confirm (protected, owner or admin)
func (h *ReservationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	reservation, err := h.transition.Confirm(r.Context(), principal, id)
	if err != nil {
		writeServiceError(w, h.log, err, "confirm reservation")
		return
	}

	utils.ResponseSuccess(w, "Reservation confirmed", response.ReservationToResponse(reservation, h.loc))
}

// Cancel handles POST /api/reservations/{id}/cancel (protected, owner or admin)
func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	reservation, err := h.transition.Cancel(r.Context(), principal, id)
	if err != nil {
		writeServiceError(w, h.log, err, "cancel reservation")
		return
	}

	utils.ResponseSuccess(w, "Reservation canceled", response.ReservationToResponse(reservation, h.loc))
}

// ==================== HELPER METHODS ====================

func (h *ReservationHandler) principalAndID(w http.ResponseWriter, r *http.Request) (entity.Principal, int64, bool) {
	principal, ok := utils.GetPrincipalFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return entity.Principal{}, 0, false
	}

	id, ok := utils.ParseID(chi.URLParam(r, "id"))
	if !ok {
		utils.ResponseBadRequest(w, "Invalid reservation ID", nil)
		return entity.Principal{}, 0, false
	}

	return principal, id, true
}

// parseListQuery drops filters it cannot parse instead of failing the request.
func (h *ReservationHandler) parseListQuery(raw request.ReservationListQuery) usecase.ReservationQuery {
	q := usecase.ReservationQuery{
		Mine:    utils.ParseBool(raw.Mine),
		Page:    raw.Page,
		PerPage: raw.Limit(),
	}

	if id, ok := utils.ParseID(raw.RoomID); ok {
		q.RoomID = &id
	}
	if status := entity.ReservationStatus(raw.Status); status.Valid() {
		q.Status = &status
	}
	if from, ok := h.parseBound(raw.From, false); ok {
		q.From = &from
	}
	if to, ok := h.parseBound(raw.To, true); ok {
		q.To = &to
	}

	return q
}

// parseBound accepts a date (expanded to the start or end of that day in the
// handler's zone) or a timestamp.
func (h *ReservationHandler) parseBound(s string, endOfDay bool) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if day, err := time.ParseInLocation("2006-01-02", s, h.loc); err == nil {
		if endOfDay {
			return now.With(day).EndOfDay(), true
		}
		return now.With(day).BeginningOfDay(), true
	}
	instant, err := entity.ParseInstant(s, h.loc)
	if err != nil {
		return time.Time{}, false
	}
	return instant.Time, true
}

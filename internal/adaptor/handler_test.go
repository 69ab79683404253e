package adaptor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"room-booking/internal/data/entity"
	"room-booking/internal/dto/request"
	"room-booking/internal/dto/response"
	"room-booking/internal/usecase"
	"room-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

// ==================== stubs ====================

type stubBooking struct {
	created   usecase.CreateReservationInput
	createErr error
	query     usecase.ReservationQuery
	list      []*entity.Reservation
	getErr    error
}

func (s *stubBooking) CreateReservation(_ context.Context, in usecase.CreateReservationInput) (*entity.Reservation, error) {
	s.created = in
	if s.createErr != nil {
		return nil, s.createErr
	}
	hold := in.StartAt.Time.Add(-time.Hour)
	return &entity.Reservation{
		Base:          entity.Base{ID: 1},
		UserID:        in.UserID,
		RoomID:        in.RoomID,
		Status:        entity.ReservationStatusPending,
		StartAt:       in.StartAt.Time,
		EndAt:         in.EndAt.Time,
		HoldExpiresAt: &hold,
	}, nil
}

func (s *stubBooking) GetReservation(_ context.Context, p entity.Principal, id int64) (*entity.Reservation, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &entity.Reservation{Base: entity.Base{ID: id}, UserID: p.UserID, Status: entity.ReservationStatusConfirmed}, nil
}

func (s *stubBooking) ListReservations(_ context.Context, _ entity.Principal, q usecase.ReservationQuery) ([]*entity.Reservation, int64, error) {
	s.query = q
	return s.list, int64(len(s.list)), nil
}

type stubTransition struct {
	err error
}

func (s *stubTransition) Confirm(_ context.Context, p entity.Principal, id int64) (*entity.Reservation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &entity.Reservation{Base: entity.Base{ID: id}, UserID: p.UserID, Status: entity.ReservationStatusConfirmed}, nil
}

func (s *stubTransition) Cancel(_ context.Context, p entity.Principal, id int64) (*entity.Reservation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &entity.Reservation{Base: entity.Base{ID: id}, UserID: p.UserID, Status: entity.ReservationStatusCanceled}, nil
}

func withPrincipal(p entity.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p.UserID != 0 {
				r = r.WithContext(utils.SetPrincipalContext(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newReservationRouter(booking *stubBooking, transition *stubTransition, p entity.Principal) http.Handler {
	h := NewReservationHandler(booking, transition, time.UTC, zap.NewNop())
	r := chi.NewRouter()
	r.Use(withPrincipal(p))
	r.Post("/api/reservations", h.Create)
	r.Get("/api/reservations", h.List)
	r.Get("/api/reservations/{id}", h.Get)
	r.Post("/api/reservations/{id}/confirm", h.Confirm)
	r.Post("/api/reservations/{id}/cancel", h.Cancel)
	return r
}

var caller = entity.Principal{UserID: 3, Role: entity.RoleUser}

// ==================== tests ====================

func TestReservationHandler_Create(t *testing.T) {
	t.Parallel()

	booking := &stubBooking{}
	router := newReservationRouter(booking, &stubTransition{}, caller)

	body := `{"room_id": 2, "start_at": "2025-02-15T10:00:00+01:00", "end_at": "2025-02-15T11:00:00"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reservations", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if booking.created.UserID != caller.UserID || booking.created.RoomID != 2 {
		t.Fatalf("unexpected input %+v", booking.created)
	}
	if !booking.created.StartAt.Zoned || booking.created.EndAt.Zoned {
		t.Fatalf("expected zoned start and naive end, got %+v", booking.created)
	}

	var data response.ReservationResponse
	if err := json.Unmarshal(decode(t, rec).Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.ID != 1 || data.Status != entity.ReservationStatusPending || data.HoldExpiresAt == nil {
		t.Fatalf("unexpected data %+v", data)
	}
}

func TestReservationHandler_CreateRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantCode   int
		wantInBody string
	}{
		{"malformed json", `{"room_id":`, nil, http.StatusBadRequest, "Invalid request body"},
		{"missing room", `{"start_at": "2025-02-15T10:00:00Z", "end_at": "2025-02-15T11:00:00Z"}`, nil, http.StatusBadRequest, "RoomID"},
		{"bad timestamp", `{"room_id": 1, "start_at": "yesterday", "end_at": "2025-02-15T11:00:00Z"}`, nil, http.StatusBadRequest, "StartAt"},
		{"rule violation", `{"room_id": 1, "start_at": "2025-02-15T10:00:00Z", "end_at": "2025-02-15T11:00:00Z"}`,
			&usecase.ValidationError{Reason: usecase.ReasonWorkingHours}, http.StatusBadRequest, usecase.ReasonWorkingHours},
		{"collision", `{"room_id": 1, "start_at": "2025-02-15T10:00:00Z", "end_at": "2025-02-15T11:00:00Z"}`,
			&usecase.CollisionError{RoomID: 1, ConflictingID: 9}, http.StatusConflict, "reservation id=9"},
		{"unknown room", `{"room_id": 5, "start_at": "2025-02-15T10:00:00Z", "end_at": "2025-02-15T11:00:00Z"}`,
			&usecase.NotFoundError{Resource: "room", ID: 5}, http.StatusNotFound, "room 5 not found"},
		{"store down", `{"room_id": 1, "start_at": "2025-02-15T10:00:00Z", "end_at": "2025-02-15T11:00:00Z"}`,
			errors.New("connection refused"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			router := newReservationRouter(&stubBooking{createErr: tt.serviceErr}, &stubTransition{}, caller)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reservations", strings.NewReader(tt.body)))

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantInBody) {
				t.Fatalf("expected body to contain %q, got %s", tt.wantInBody, rec.Body.String())
			}
			if decode(t, rec).Status {
				t.Fatalf("expected status false")
			}
		})
	}
}

func TestReservationHandler_CollisionCarriesIDs(t *testing.T) {
	t.Parallel()

	router := newReservationRouter(&stubBooking{createErr: &usecase.CollisionError{RoomID: 1, ConflictingID: 9}}, &stubTransition{}, caller)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reservations",
		strings.NewReader(`{"room_id": 1, "start_at": "2025-02-15T10:00:00Z", "end_at": "2025-02-15T11:00:00Z"}`)))

	var ids map[string]int64
	if err := json.Unmarshal(decode(t, rec).Errors, &ids); err != nil {
		t.Fatalf("decode errors: %v", err)
	}
	if ids["room_id"] != 1 || ids["conflicting_id"] != 9 {
		t.Fatalf("unexpected errors payload %v", ids)
	}
}

func TestReservationHandler_RequiresPrincipal(t *testing.T) {
	t.Parallel()

	router := newReservationRouter(&stubBooking{}, &stubTransition{}, entity.Principal{})
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/api/reservations", strings.NewReader(`{}`)),
		httptest.NewRequest(http.MethodGet, "/api/reservations", nil),
		httptest.NewRequest(http.MethodGet, "/api/reservations/1", nil),
		httptest.NewRequest(http.MethodPost, "/api/reservations/1/confirm", nil),
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", req.Method, req.URL.Path, rec.Code)
		}
	}
}

func TestReservationHandler_List(t *testing.T) {
	t.Parallel()

	booking := &stubBooking{list: []*entity.Reservation{
		{Base: entity.Base{ID: 1}, Status: entity.ReservationStatusConfirmed},
		{Base: entity.Base{ID: 2}, Status: entity.ReservationStatusPending},
	}}
	router := newReservationRouter(booking, &stubTransition{}, caller)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/reservations?room_id=4&status=confirmed&from=2025-02-15&to=2025-02-15T12:00:00Z&mine=1&page=2&per_page=1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	q := booking.query
	if q.RoomID == nil || *q.RoomID != 4 {
		t.Fatalf("expected room filter, got %+v", q)
	}
	if q.Status == nil || *q.Status != entity.ReservationStatusConfirmed {
		t.Fatalf("expected status filter, got %+v", q)
	}
	if q.From == nil || !q.From.Equal(time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected from at start of day, got %v", q.From)
	}
	if q.To == nil || !q.To.Equal(time.Date(2025, 2, 15, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected to timestamp, got %v", q.To)
	}
	if !q.Mine || q.Page != 2 || q.PerPage != 1 {
		t.Fatalf("unexpected paging %+v", q)
	}

	var page response.PaginatedResponse[response.ReservationResponse]
	if err := json.Unmarshal(decode(t, rec).Data, &page); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(page.Data) != 2 || page.Pagination.Total != 2 || page.Pagination.TotalPages != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestReservationHandler_ListIgnoresBadFilters(t *testing.T) {
	t.Parallel()

	booking := &stubBooking{}
	router := newReservationRouter(booking, &stubTransition{}, caller)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/reservations?room_id=abc&status=archived&from=soon&to=&mine=maybe", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	q := booking.query
	if q.RoomID != nil || q.Status != nil || q.From != nil || q.To != nil || q.Mine {
		t.Fatalf("expected every filter to be dropped, got %+v", q)
	}
}

func TestReservationHandler_ByID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		path       string
		getErr     error
		transErr   error
		wantCode   int
		wantStatus entity.ReservationStatus
	}{
		{"get", http.MethodGet, "/api/reservations/7", nil, nil, http.StatusOK, entity.ReservationStatusConfirmed},
		{"get forbidden", http.MethodGet, "/api/reservations/7", &usecase.AuthorizationError{Action: usecase.ActionView}, nil, http.StatusForbidden, ""},
		{"get missing", http.MethodGet, "/api/reservations/7", &usecase.NotFoundError{Resource: "reservation", ID: 7}, nil, http.StatusNotFound, ""},
		{"bad id", http.MethodGet, "/api/reservations/seven", nil, nil, http.StatusBadRequest, ""},
		{"confirm", http.MethodPost, "/api/reservations/7/confirm", nil, nil, http.StatusOK, entity.ReservationStatusConfirmed},
		{"confirm not pending", http.MethodPost, "/api/reservations/7/confirm", nil, &usecase.ValidationError{Reason: usecase.ReasonNotPending}, http.StatusBadRequest, ""},
		{"cancel", http.MethodPost, "/api/reservations/7/cancel", nil, nil, http.StatusOK, entity.ReservationStatusCanceled},
		{"cancel forbidden", http.MethodPost, "/api/reservations/7/cancel", nil, &usecase.AuthorizationError{Action: usecase.ActionCancel}, http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			router := newReservationRouter(&stubBooking{getErr: tt.getErr}, &stubTransition{err: tt.transErr}, caller)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if tt.wantStatus == "" {
				return
			}
			var data response.ReservationResponse
			if err := json.Unmarshal(decode(t, rec).Data, &data); err != nil {
				t.Fatalf("decode data: %v", err)
			}
			if data.ID != 7 || data.Status != tt.wantStatus {
				t.Fatalf("unexpected data %+v", data)
			}
		})
	}
}

// ==================== auth & admin ====================

type stubAuth struct {
	loginErr  error
	meta      request.ClientMeta
	loggedOut string
}

func (s *stubAuth) Login(_ context.Context, req *request.LoginRequest, meta request.ClientMeta) (*response.AuthResponse, error) {
	s.meta = meta
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &response.AuthResponse{UserID: 1, Token: "jwt", Username: req.Username, Role: entity.RoleUser}, nil
}

func (s *stubAuth) Logout(_ context.Context, sessionToken string) error {
	s.loggedOut = sessionToken
	return nil
}

func (s *stubAuth) Authenticate(context.Context, string) (entity.Principal, string, error) {
	return entity.Principal{}, "", usecase.ErrUnauthenticated
}

func (s *stubAuth) CreateUser(context.Context, *request.CreateUserRequest) (*entity.User, error) {
	return nil, errors.New("not used")
}

func (s *stubAuth) CleanExpiredSessions(context.Context) (int64, error) { return 0, nil }

func TestAuthHandler_Login(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
	}{
		{"ok", `{"username":"alice","password":"secret123"}`, nil, http.StatusOK},
		{"short password", `{"username":"alice","password":"x"}`, nil, http.StatusBadRequest},
		{"wrong password", `{"username":"alice","password":"secret123"}`, usecase.ErrInvalidCredentials, http.StatusUnauthorized},
		{"inactive", `{"username":"alice","password":"secret123"}`, usecase.ErrInactiveAccount, http.StatusForbidden},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubAuth{loginErr: tt.err}
			h := NewAuthHandler(svc, zap.NewNop())

			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tt.body))
			req.Header.Set("User-Agent", "test-agent")
			req.RemoteAddr = "192.0.2.10:5555"
			rec := httptest.NewRecorder()
			h.Login(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if tt.wantCode == http.StatusOK && (svc.meta.IPAddress != "192.0.2.10" || svc.meta.UserAgent != "test-agent") {
				t.Fatalf("unexpected client meta %+v", svc.meta)
			}
		})
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	t.Parallel()

	svc := &stubAuth{}
	h := NewAuthHandler(svc, zap.NewNop())

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req = req.WithContext(utils.SetTokenContext(req.Context(), "session-1"))
	rec = httptest.NewRecorder()
	h.Logout(rec, req)
	if rec.Code != http.StatusOK || svc.loggedOut != "session-1" {
		t.Fatalf("expected logout of session-1, got %d %q", rec.Code, svc.loggedOut)
	}
}

type stubExpiry struct {
	canceled int
	err      error
}

func (s *stubExpiry) ExpireHold(context.Context, int64) error { return nil }

func (s *stubExpiry) ReconcilePending(context.Context) (int, error) { return s.canceled, s.err }

func TestAdminHandler_Reconcile(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewAdminHandler(&stubExpiry{canceled: 3}, zap.NewNop()).Reconcile(rec, httptest.NewRequest(http.MethodPost, "/api/admin/reconcile", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"canceled":3`) {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	storeErr := errors.New(`reservation 12: ERROR: relation "reservations" does not exist (SQLSTATE 42P01)`)
	NewAdminHandler(&stubExpiry{canceled: 1, err: storeErr}, zap.NewNop()).Reconcile(rec, httptest.NewRequest(http.MethodPost, "/api/admin/reconcile", nil))
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), `"canceled":1`) {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
	if body := rec.Body.String(); strings.Contains(body, "SQLSTATE") || strings.Contains(body, "relation") {
		t.Fatalf("store error leaked to client: %s", body)
	}
	if env := decode(t, rec); env.Status || len(env.Errors) != 0 {
		t.Fatalf("expected failure envelope without error details, got %+v", env)
	}
}

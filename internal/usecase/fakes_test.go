package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"room-booking/internal/data/entity"
	"room-booking/internal/data/repository"
	"room-booking/internal/tasks"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// ==================== reservations ====================

type fakeReservations struct {
	mu     sync.Mutex
	rows   map[int64]*entity.Reservation
	nextID int64

	findErr     error
	expireErr   map[int64]error
	listFilters []repository.ReservationFilter
	// beforeUpdate runs once, before the next UpdateStatus, to simulate a
	// concurrent writer.
	beforeUpdate func(rows map[int64]*entity.Reservation)
	// racer is committed by another writer while Create runs. Create then
	// fails the way the exclusion constraint does.
	racer *entity.Reservation
}

func newFakeReservations() *fakeReservations {
	return &fakeReservations{rows: make(map[int64]*entity.Reservation), expireErr: make(map[int64]error)}
}

func (f *fakeReservations) add(r entity.Reservation) *entity.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	if r.ID == 0 {
		r.ID = f.nextID
	}
	cp := r
	f.rows[r.ID] = &cp
	return &r
}

func (f *fakeReservations) get(id int64) *entity.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

func (f *fakeReservations) snapshot() map[int64]entity.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := make(map[int64]entity.Reservation, len(f.rows))
	for id, r := range f.rows {
		snap[id] = *r
	}
	return snap
}

func (f *fakeReservations) restore(snap map[int64]entity.Reservation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = make(map[int64]*entity.Reservation, len(snap))
	for id, r := range snap {
		r := r
		f.rows[id] = &r
	}
}

func (f *fakeReservations) Create(_ context.Context, r *entity.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.racer != nil {
		return repository.ErrOverlap
	}
	f.nextID++
	r.ID = f.nextID
	cp := *r
	f.rows[r.ID] = &cp
	return nil
}

func (f *fakeReservations) commitRacer() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.racer == nil {
		return
	}
	cp := *f.racer
	f.rows[cp.ID] = &cp
	f.racer = nil
}

func (f *fakeReservations) FindByID(_ context.Context, id int64) (*entity.Reservation, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.get(id), nil
}

func (f *fakeReservations) FindActiveByRoomInRange(_ context.Context, roomID int64, from, to time.Time) ([]*entity.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Reservation
	for _, r := range f.rows {
		if r.RoomID == roomID && r.Status != entity.ReservationStatusCanceled &&
			r.StartAt.Before(to) && r.EndAt.After(from) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (f *fakeReservations) List(_ context.Context, filter repository.ReservationFilter) ([]*entity.Reservation, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listFilters = append(f.listFilters, filter)
	var out []*entity.Reservation
	for _, r := range f.rows {
		if filter.UserID != nil && r.UserID != *filter.UserID {
			continue
		}
		if filter.RoomID != nil && r.RoomID != *filter.RoomID {
			continue
		}
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.After(out[j].StartAt) })
	return out, int64(len(out)), nil
}

func (f *fakeReservations) UpdateStatus(_ context.Context, id int64, from, to entity.ReservationStatus, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if hook := f.beforeUpdate; hook != nil {
		f.beforeUpdate = nil
		hook(f.rows)
	}
	r, ok := f.rows[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	if to != entity.ReservationStatusPending {
		r.HoldExpiresAt = nil
	}
	r.UpdatedAt = now
	return true, nil
}

func (f *fakeReservations) ExpireIfDue(_ context.Context, id int64, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.expireErr[id]; err != nil {
		return false, err
	}
	r, ok := f.rows[id]
	if !ok || !r.HoldExpired(now) {
		return false, nil
	}
	r.Status = entity.ReservationStatusCanceled
	r.HoldExpiresAt = nil
	r.UpdatedAt = now
	return true, nil
}

func (f *fakeReservations) FindExpiredPending(_ context.Context, now time.Time, limit int) ([]*entity.Reservation, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Reservation
	for _, r := range f.rows {
		if r.HoldExpired(now) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeReservations) LockRoom(context.Context, int64) error { return nil }

// ==================== rooms, users, sessions ====================

type fakeRooms struct {
	rooms map[int64]*entity.Room
}

func (f *fakeRooms) FindByID(_ context.Context, id int64) (*entity.Room, error) {
	r, ok := f.rooms[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRooms) FindAll(context.Context) ([]*entity.Room, error) {
	var out []*entity.Room
	for _, r := range f.rooms {
		out = append(out, r)
	}
	return out, nil
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[int64]*entity.User
}

func (f *fakeUsers) Create(_ context.Context, u *entity.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return repository.ErrDuplicateUser
		}
	}
	u.ID = int64(len(f.users) + 1)
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) FindByID(_ context.Context, id int64) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) FindByLogin(_ context.Context, login string) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == login || u.Email == login {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*entity.Session
}

func (f *fakeSessions) Create(_ context.Context, s *entity.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.sessions[s.Token] = &cp
	return nil
}

func (f *fakeSessions) FindValidSession(_ context.Context, token uuid.UUID, now time.Time) (*entity.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok || s.RevokedAt != nil || !s.ExpiresAt.After(now) {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) Revoke(_ context.Context, token uuid.UUID, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok || s.RevokedAt != nil {
		return repository.ErrSessionNotFound
	}
	s.RevokedAt = &now
	return nil
}

func (f *fakeSessions) CleanExpiredSessions(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for token, s := range f.sessions {
		if s.ExpiresAt.Before(before) {
			delete(f.sessions, token)
			n++
		}
	}
	return n, nil
}

// ==================== tx, scheduler, notifier ====================

// fakeTx rolls the reservation table back when fn fails.
type fakeTx struct {
	reservations *fakeReservations
}

func (t *fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := t.reservations.snapshot()
	if err := fn(ctx); err != nil {
		t.reservations.restore(snap)
		t.reservations.commitRacer()
		return err
	}
	return nil
}

type scheduledTask struct {
	Name      string
	Payload   any
	NotBefore time.Time
	Opts      []tasks.Option
}

type fakeScheduler struct {
	mu    sync.Mutex
	calls []scheduledTask
	err   error
}

func (f *fakeScheduler) Schedule(_ context.Context, name string, payload any, notBefore time.Time, opts ...tasks.Option) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.calls = append(f.calls, scheduledTask{Name: name, Payload: payload, NotBefore: notBefore, Opts: opts})
	return uuid.New(), nil
}

func (f *fakeScheduler) named(name string) []scheduledTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []scheduledTask
	for _, c := range f.calls {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

type notification struct {
	ReservationID int64
	Event         string
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (f *fakeNotifier) Notify(_ context.Context, reservationID int64, event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, notification{ReservationID: reservationID, Event: event})
}

func (f *fakeNotifier) all() []notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notification(nil), f.events...)
}

// ==================== fixture ====================

type fixture struct {
	clock        *testClock
	reservations *fakeReservations
	rooms        *fakeRooms
	users        *fakeUsers
	sessions     *fakeSessions
	scheduler    *fakeScheduler
	notifier     *fakeNotifier
	repo         *repository.Repository
	warsaw       *time.Location
}

var baseNow = time.Date(2025, 2, 15, 7, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	warsaw, err := time.LoadLocation("Europe/Warsaw")
	if err != nil {
		// fixed +01:00 is what Warsaw observes in February
		warsaw = time.FixedZone("CET", 3600)
	}

	f := &fixture{
		clock:        &testClock{now: baseNow},
		reservations: newFakeReservations(),
		rooms: &fakeRooms{rooms: map[int64]*entity.Room{
			1: {Base: entity.Base{ID: 1}, Name: "Sala A", Capacity: 8},
			2: {Base: entity.Base{ID: 2}, Name: "Sala B", Capacity: 12},
		}},
		users:     &fakeUsers{users: map[int64]*entity.User{}},
		sessions:  &fakeSessions{sessions: map[uuid.UUID]*entity.Session{}},
		scheduler: &fakeScheduler{},
		notifier:  &fakeNotifier{},
		warsaw:    warsaw,
	}
	f.repo = &repository.Repository{
		Tx:          &fakeTx{reservations: f.reservations},
		User:        f.users,
		Session:     f.sessions,
		Room:        f.rooms,
		Reservation: f.reservations,
	}
	return f
}

func (f *fixture) booking(opts ...BookingOption) BookingService {
	all := append([]BookingOption{WithLocation(f.warsaw), WithClock(f.clock)}, opts...)
	return NewBookingService(f.repo, f.scheduler, f.notifier, zap.NewNop(), all...)
}

func (f *fixture) transitions() TransitionService {
	return NewTransitionService(f.repo, f.notifier, f.clock, zap.NewNop())
}

func (f *fixture) expiry() ExpiryService {
	return NewExpiryService(f.repo, f.notifier, f.clock, zap.NewNop())
}

// pending stores a pending reservation whose hold ends at holdEnd.
func (f *fixture) pending(userID, roomID int64, start, end, holdEnd time.Time) *entity.Reservation {
	return f.reservations.add(entity.Reservation{
		UserID:        userID,
		RoomID:        roomID,
		Status:        entity.ReservationStatusPending,
		StartAt:       start,
		EndAt:         end,
		HoldExpiresAt: &holdEnd,
	})
}

func (f *fixture) withStatus(userID, roomID int64, status entity.ReservationStatus, start, end time.Time) *entity.Reservation {
	return f.reservations.add(entity.Reservation{
		UserID:  userID,
		RoomID:  roomID,
		Status:  status,
		StartAt: start,
		EndAt:   end,
	})
}

func mustInstant(s string) entity.Instant {
	i, err := entity.ParseInstant(s, nil)
	if err != nil {
		panic(err)
	}
	return i
}

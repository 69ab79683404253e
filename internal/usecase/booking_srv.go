package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"room-booking/internal/data/entity"
	"room-booking/internal/data/repository"
	"room-booking/internal/tasks"
	"room-booking/pkg/clock"
	"room-booking/pkg/interval"
	"room-booking/pkg/utils"

	"github.com/jinzhu/now"
	"go.uber.org/zap"
)

const (
	ReasonStartBeforeEnd = "start before end"
	ReasonSingleDay      = "single-day span"
	ReasonTimezone       = "timezone required"
	ReasonWorkingHours   = "outside working hours"
	ReasonNotPending     = "not pending"
)

const (
	expireHoldMaxAttempts = 5
	expireHoldBaseDelay   = 60 * time.Second
)

// CreateReservationInput is a booking request after wire decoding.
type CreateReservationInput struct {
	UserID  int64
	RoomID  int64
	StartAt entity.Instant
	EndAt   entity.Instant
}

// ReservationQuery filters ListReservations. Zero values mean no filter.
type ReservationQuery struct {
	RoomID  *int64
	Status  *entity.ReservationStatus
	From    *time.Time
	To      *time.Time
	Mine    bool
	Page    int
	PerPage int
}

type BookingService interface {
	CreateReservation(ctx context.Context, in CreateReservationInput) (*entity.Reservation, error)
	GetReservation(ctx context.Context, p entity.Principal, id int64) (*entity.Reservation, error)
	ListReservations(ctx context.Context, p entity.Principal, q ReservationQuery) ([]*entity.Reservation, int64, error)
}

type BookingOption func(*bookingService)

// WithWorkHours sets the window every reservation must fit into.
func WithWorkHours(start, end entity.ClockTime) BookingOption {
	return func(s *bookingService) {
		s.workStart = start
		s.workEnd = end
	}
}

func WithHoldDuration(d time.Duration) BookingOption {
	return func(s *bookingService) {
		if d > 0 {
			s.hold = d
		}
	}
}

// WithLocation sets the zone used for calendar-day and working-hours checks
// when the room has no zone of its own.
func WithLocation(loc *time.Location) BookingOption {
	return func(s *bookingService) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithClock(clk clock.Clock) BookingOption {
	return func(s *bookingService) {
		if clk != nil {
			s.clock = clk
		}
	}
}

type bookingService struct {
	repo      *repository.Repository
	scheduler tasks.Scheduler
	notifier  Notifier
	clock     clock.Clock
	log       *zap.Logger

	workStart entity.ClockTime
	workEnd   entity.ClockTime
	hold      time.Duration
	location  *time.Location
}

func NewBookingService(repo *repository.Repository, scheduler tasks.Scheduler, notifier Notifier, log *zap.Logger, opts ...BookingOption) BookingService {
	s := &bookingService{
		repo:      repo,
		scheduler: scheduler,
		notifier:  notifier,
		clock:     clock.NewSystem(),
		log:       log.With(zap.String("service", "booking")),
		workStart: entity.ClockTime{Hour: 8},
		workEnd:   entity.ClockTime{Hour: 18},
		hold:      15 * time.Minute,
		location:  time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *bookingService) CreateReservation(ctx context.Context, in CreateReservationInput) (*entity.Reservation, error) {
	// 0. Room harus ada
	room, err := s.repo.Room.FindByID(ctx, in.RoomID)
	if err != nil {
		return nil, fmt.Errorf("load room %d: %w", in.RoomID, err)
	}
	if room == nil {
		return nil, &NotFoundError{Resource: "room", ID: in.RoomID}
	}

	loc := s.roomLocation(room)
	start := inLocation(in.StartAt, loc)
	end := inLocation(in.EndAt, loc)

	// 1-4. Business rules, in order
	if !start.Before(end) {
		return nil, &ValidationError{Reason: ReasonStartBeforeEnd}
	}
	dayStart := now.With(start).BeginningOfDay()
	if !dayStart.Equal(now.With(end).BeginningOfDay()) {
		return nil, &ValidationError{Reason: ReasonSingleDay}
	}
	if !in.StartAt.Zoned || !in.EndAt.Zoned {
		return nil, &ValidationError{Reason: ReasonTimezone}
	}
	if entity.TimeOfDay(start) < s.workStart.SinceMidnight() || entity.TimeOfDay(end) > s.workEnd.SinceMidnight() {
		return nil, &ValidationError{Reason: ReasonWorkingHours}
	}

	createdAt := s.clock.Now()
	holdExpiresAt := createdAt.Add(s.hold)
	reservation := &entity.Reservation{
		Base: entity.Base{
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		},
		UserID:        in.UserID,
		RoomID:        room.ID,
		Status:        entity.ReservationStatusPending,
		StartAt:       start.UTC(),
		EndAt:         end.UTC(),
		HoldExpiresAt: &holdExpiresAt,
	}

	// 5. Collision check and insert under the room lock
	err = s.repo.Tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Reservation.LockRoom(ctx, room.ID); err != nil {
			return err
		}

		existing, err := s.repo.Reservation.FindActiveByRoomInRange(ctx, room.ID, dayStart, now.With(start).EndOfDay())
		if err != nil {
			return err
		}
		for _, r := range existing {
			if interval.Overlaps(start, end, r.StartAt, r.EndAt) {
				return &CollisionError{RoomID: room.ID, ConflictingID: r.ID}
			}
		}

		if err := s.repo.Reservation.Create(ctx, reservation); err != nil {
			return err
		}

		_, err = s.scheduler.Schedule(ctx, TaskExpireHold,
			ExpireHoldPayload{ReservationID: reservation.ID},
			holdExpiresAt,
			tasks.MaxAttempts(expireHoldMaxAttempts),
			tasks.BaseDelay(expireHoldBaseDelay),
		)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrOverlap) {
			return nil, s.constraintCollision(ctx, room.ID, start, end, dayStart)
		}
		var collision *CollisionError
		if errors.As(err, &collision) {
			s.log.Info("Reservation collision",
				zap.Int64("room_id", room.ID),
				zap.Int64("conflicting_id", collision.ConflictingID),
			)
			return nil, err
		}
		s.log.Error("Failed to create reservation", zap.Error(err), zap.Int64("room_id", room.ID))
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	s.notifier.Notify(ctx, reservation.ID, EventCreated)

	s.log.Info("Reservation created",
		zap.Int64("reservation_id", reservation.ID),
		zap.Int64("room_id", reservation.RoomID),
		zap.Int64("user_id", reservation.UserID),
		zap.Time("hold_expires_at", holdExpiresAt),
	)

	return reservation, nil
}

func (s *bookingService) GetReservation(ctx context.Context, p entity.Principal, id int64) (*entity.Reservation, error) {
	r, err := s.repo.Reservation.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load reservation %d: %w", id, err)
	}
	if r == nil {
		return nil, &NotFoundError{Resource: "reservation", ID: id}
	}
	if err := Authorize(p, ActionView, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ListReservations is visible to every authenticated principal; Mine narrows
// the result to the caller's own reservations.
func (s *bookingService) ListReservations(ctx context.Context, p entity.Principal, q ReservationQuery) ([]*entity.Reservation, int64, error) {
	page, perPage := q.Page, q.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	filter := repository.ReservationFilter{
		RoomID: q.RoomID,
		Status: q.Status,
		From:   q.From,
		To:     q.To,
		Limit:  perPage,
		Offset: utils.CalculateOffset(page, perPage),
	}
	if q.Mine {
		userID := p.UserID
		filter.UserID = &userID
	}

	list, total, err := s.repo.Reservation.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}
	return list, total, nil
}

// roomLocation returns the room's zone, or the default one when the room has
// none or names an unknown zone.
func (s *bookingService) roomLocation(room *entity.Room) *time.Location {
	if room.Timezone == "" {
		return s.location
	}
	loc, err := time.LoadLocation(room.Timezone)
	if err != nil {
		s.log.Warn("Unknown room timezone, using default",
			zap.Int64("room_id", room.ID),
			zap.String("timezone", room.Timezone),
		)
		return s.location
	}
	return loc
}

// inLocation converts an instant to loc. A naive instant keeps its wall clock
// reading and is placed in loc.
func inLocation(i entity.Instant, loc *time.Location) time.Time {
	if i.Zoned {
		return i.Time.In(loc)
	}
	t := i.Time
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// constraintCollision builds the collision error when the exclusion constraint
// rejected the insert. The conflicting row committed after our check, so it is
// looked up again once the transaction has rolled back.
func (s *bookingService) constraintCollision(ctx context.Context, roomID int64, start, end, dayStart time.Time) error {
	collision := &CollisionError{RoomID: roomID}
	existing, err := s.repo.Reservation.FindActiveByRoomInRange(ctx, roomID, dayStart, now.With(start).EndOfDay())
	if err != nil {
		s.log.Warn("Failed to look up conflicting reservation", zap.Error(err), zap.Int64("room_id", roomID))
		return collision
	}
	for _, r := range existing {
		if interval.Overlaps(start, end, r.StartAt, r.EndAt) {
			collision.ConflictingID = r.ID
			break
		}
	}
	s.log.Info("Reservation collision caught by constraint",
		zap.Int64("room_id", roomID),
		zap.Int64("conflicting_id", collision.ConflictingID),
	)
	return collision
}

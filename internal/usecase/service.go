package usecase

import (
	"time"

	"room-booking/internal/data/entity"
	"room-booking/internal/data/repository"
	"room-booking/internal/tasks"
	"room-booking/pkg/clock"
	"room-booking/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Auth       AuthService
	Booking    BookingService
	Transition TransitionService
	Expiry     ExpiryService
	Room       RoomService
}

// NewService builds every use case on top of one repository set and one task
// scheduler.
func NewService(repo *repository.Repository, scheduler tasks.Scheduler, config *utils.Config, clk clock.Clock, log *zap.Logger) (*Service, error) {
	bookingOpts, err := BookingOptions(config.Booking)
	if err != nil {
		return nil, err
	}
	bookingOpts = append(bookingOpts, WithClock(clk))

	notifier := NewTaskNotifier(scheduler, clk, log)

	return &Service{
		Auth:       NewAuthService(repo, config.JWT, clk, log),
		Booking:    NewBookingService(repo, scheduler, notifier, log, bookingOpts...),
		Transition: NewTransitionService(repo, notifier, clk, log),
		Expiry:     NewExpiryService(repo, notifier, clk, log),
		Room:       NewRoomService(repo, log),
	}, nil
}

// BookingOptions turns the booking section of the configuration into service
// options.
func BookingOptions(cfg utils.BookingConfig) ([]BookingOption, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	start, err := entity.ParseClockTime(cfg.WorkStart)
	if err != nil {
		return nil, err
	}
	end, err := entity.ParseClockTime(cfg.WorkEnd)
	if err != nil {
		return nil, err
	}
	return []BookingOption{
		WithLocation(loc),
		WithWorkHours(start, end),
		WithHoldDuration(time.Duration(cfg.HoldMinutes) * time.Minute),
	}, nil
}

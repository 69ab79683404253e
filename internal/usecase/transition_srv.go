package usecase

import (
	"context"
	"fmt"

	"room-booking/internal/data/entity"
	"room-booking/internal/data/repository"
	"room-booking/pkg/clock"

	"go.uber.org/zap"
)

// transitionRetries bounds how often a lost conditional write is re-evaluated.
// Status only moves forward, so a handful of rounds always settles.
const transitionRetries = 3

type TransitionService interface {
	Confirm(ctx context.Context, p entity.Principal, id int64) (*entity.Reservation, error)
	Cancel(ctx context.Context, p entity.Principal, id int64) (*entity.Reservation, error)
}

type transitionService struct {
	repo     *repository.Repository
	notifier Notifier
	clock    clock.Clock
	log      *zap.Logger
}

func NewTransitionService(repo *repository.Repository, notifier Notifier, clk clock.Clock, log *zap.Logger) TransitionService {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &transitionService{
		repo:     repo,
		notifier: notifier,
		clock:    clk,
		log:      log.With(zap.String("service", "transition")),
	}
}

// Confirm moves a pending reservation to confirmed.
func (s *transitionService) Confirm(ctx context.Context, p entity.Principal, id int64) (*entity.Reservation, error) {
	r, err := s.load(ctx, p, ActionConfirm, id)
	if err != nil {
		return nil, err
	}

	for i := 0; i < transitionRetries; i++ {
		if r.Status != entity.ReservationStatusPending {
			return nil, &ValidationError{Reason: ReasonNotPending}
		}

		ok, err := s.apply(ctx, r, entity.ReservationStatusConfirmed)
		if err != nil {
			return nil, err
		}
		if ok {
			s.notifier.Notify(ctx, r.ID, EventConfirmed)
			s.log.Info("Reservation confirmed", zap.Int64("reservation_id", r.ID), zap.Int64("by", p.UserID))
			return r, nil
		}

		if r, err = s.reload(ctx, id); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("confirm reservation %d: status kept changing", id)
}

// Cancel moves a pending or confirmed reservation to canceled. Canceling a
// canceled reservation returns it unchanged.
func (s *transitionService) Cancel(ctx context.Context, p entity.Principal, id int64) (*entity.Reservation, error) {
	r, err := s.load(ctx, p, ActionCancel, id)
	if err != nil {
		return nil, err
	}

	for i := 0; i < transitionRetries; i++ {
		switch r.Status {
		case entity.ReservationStatusCanceled:
			return r, nil
		case entity.ReservationStatusPending, entity.ReservationStatusConfirmed:
		default:
			return nil, &ValidationError{Reason: fmt.Sprintf("cannot cancel reservation in status %s", r.Status)}
		}

		ok, err := s.apply(ctx, r, entity.ReservationStatusCanceled)
		if err != nil {
			return nil, err
		}
		if ok {
			s.notifier.Notify(ctx, r.ID, EventCanceled)
			s.log.Info("Reservation canceled", zap.Int64("reservation_id", r.ID), zap.Int64("by", p.UserID))
			return r, nil
		}

		if r, err = s.reload(ctx, id); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("cancel reservation %d: status kept changing", id)
}

// ==================== HELPER METHODS ====================

func (s *transitionService) load(ctx context.Context, p entity.Principal, action string, id int64) (*entity.Reservation, error) {
	r, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(p, action, r); err != nil {
		s.log.Warn("Transition denied",
			zap.String("action", action),
			zap.Int64("reservation_id", id),
			zap.Int64("user_id", p.UserID),
		)
		return nil, err
	}
	return r, nil
}

func (s *transitionService) reload(ctx context.Context, id int64) (*entity.Reservation, error) {
	r, err := s.repo.Reservation.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load reservation %d: %w", id, err)
	}
	if r == nil {
		return nil, &NotFoundError{Resource: "reservation", ID: id}
	}
	return r, nil
}

// apply writes the transition conditioned on the status r was read with and,
// on success, updates r in place.
func (s *transitionService) apply(ctx context.Context, r *entity.Reservation, to entity.ReservationStatus) (bool, error) {
	at := s.clock.Now()
	ok, err := s.repo.Reservation.UpdateStatus(ctx, r.ID, r.Status, to, at)
	if err != nil {
		s.log.Error("Failed to update reservation status", zap.Error(err), zap.Int64("reservation_id", r.ID))
		return false, fmt.Errorf("update reservation %d: %w", r.ID, err)
	}
	if !ok {
		s.log.Debug("Lost status race, re-reading", zap.Int64("reservation_id", r.ID))
		return false, nil
	}
	r.Status = to
	r.HoldExpiresAt = nil
	r.UpdatedAt = at
	return true, nil
}

package usecase

import (
	"context"
	"errors"
	"fmt"

	"room-booking/internal/data/repository"
	"room-booking/pkg/clock"

	"go.uber.org/zap"
)

const reconcileBatchSize = 200

// ExpiryService releases pending holds whose deadline has passed. ExpireHold
// serves the per-reservation trigger; ReconcilePending is the safety net for
// triggers that never fired.
type ExpiryService interface {
	ExpireHold(ctx context.Context, reservationID int64) error
	ReconcilePending(ctx context.Context) (int, error)
}

type expiryService struct {
	repo     *repository.Repository
	notifier Notifier
	clock    clock.Clock
	log      *zap.Logger
}

func NewExpiryService(repo *repository.Repository, notifier Notifier, clk clock.Clock, log *zap.Logger) ExpiryService {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &expiryService{
		repo:     repo,
		notifier: notifier,
		clock:    clk,
		log:      log.With(zap.String("service", "expiry")),
	}
}

// ExpireHold cancels the reservation if it is still pending and its hold
// deadline is at or before now. Anything else is a successful no-op, so the
// call is safe to repeat. Store failures are returned for retry.
func (s *expiryService) ExpireHold(ctx context.Context, reservationID int64) error {
	r, err := s.repo.Reservation.FindByID(ctx, reservationID)
	if err != nil {
		return &TransientStoreError{Op: fmt.Sprintf("load reservation %d", reservationID), Err: err}
	}
	if r == nil {
		s.log.Debug("Expire hold: reservation gone", zap.Int64("reservation_id", reservationID))
		return nil
	}

	now := s.clock.Now()
	if !r.HoldExpired(now) {
		s.log.Debug("Expire hold: nothing to do",
			zap.Int64("reservation_id", reservationID),
			zap.String("status", string(r.Status)),
		)
		return nil
	}

	changed, err := s.repo.Reservation.ExpireIfDue(ctx, reservationID, now)
	if err != nil {
		return &TransientStoreError{Op: fmt.Sprintf("expire reservation %d", reservationID), Err: err}
	}
	if !changed {
		// confirmed or canceled between the read and the write
		return nil
	}

	s.notifier.Notify(ctx, reservationID, EventHoldExpired)
	s.log.Info("Hold expired", zap.Int64("reservation_id", reservationID))
	return nil
}

// ReconcilePending cancels every pending reservation with an elapsed hold and
// returns how many it canceled. Individual write failures do not stop the
// pass; they are joined into the returned error.
func (s *expiryService) ReconcilePending(ctx context.Context) (int, error) {
	now := s.clock.Now()
	canceled := 0
	var errs []error

	for {
		batch, err := s.repo.Reservation.FindExpiredPending(ctx, now, reconcileBatchSize)
		if err != nil {
			errs = append(errs, &TransientStoreError{Op: "find expired holds", Err: err})
			break
		}

		progressed := false
		for _, r := range batch {
			if err := ctx.Err(); err != nil {
				errs = append(errs, err)
				return canceled, errors.Join(errs...)
			}
			changed, err := s.repo.Reservation.ExpireIfDue(ctx, r.ID, now)
			if err != nil {
				s.log.Warn("Reconcile: failed to expire reservation", zap.Error(err), zap.Int64("reservation_id", r.ID))
				errs = append(errs, &TransientStoreError{Op: fmt.Sprintf("expire reservation %d", r.ID), Err: err})
				continue
			}
			progressed = true
			if changed {
				canceled++
				s.notifier.Notify(ctx, r.ID, EventHoldExpired)
			}
		}

		// a full batch may hide more rows; stop when nothing moved to avoid
		// spinning on rows that keep failing
		if len(batch) < reconcileBatchSize || !progressed {
			break
		}
	}

	if canceled > 0 || len(errs) > 0 {
		s.log.Info("Reconciliation finished", zap.Int("canceled", canceled), zap.Int("errors", len(errs)))
	}

	return canceled, errors.Join(errs...)
}

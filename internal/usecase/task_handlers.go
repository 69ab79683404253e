package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"room-booking/internal/tasks"

	"go.uber.org/zap"
)

const (
	TaskExpireHold       = "expire_hold"
	TaskReconcilePending = "reconcile_pending"
	TaskSendNotification = "send_notification"
	TaskCleanSessions    = "clean_sessions"
)

const (
	ReconcileMaxAttempts = 3
	ReconcileBaseDelay   = 120 * time.Second
)

type ExpireHoldPayload struct {
	ReservationID int64 `json:"reservation_id"`
}

// TaskHandlers maps every task name the service produces to its handler.
func TaskHandlers(svc *Service, log *zap.Logger) map[string]tasks.HandlerFunc {
	log = log.With(zap.String("service", "tasks"))

	return map[string]tasks.HandlerFunc{
		TaskExpireHold: func(ctx context.Context, payload json.RawMessage) error {
			var p ExpireHoldPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("decode %s payload: %w", TaskExpireHold, err)
			}
			return svc.Expiry.ExpireHold(ctx, p.ReservationID)
		},
		TaskReconcilePending: func(ctx context.Context, _ json.RawMessage) error {
			_, err := svc.Expiry.ReconcilePending(ctx)
			return err
		},
		TaskCleanSessions: func(ctx context.Context, _ json.RawMessage) error {
			_, err := svc.Auth.CleanExpiredSessions(ctx)
			return err
		},
		TaskSendNotification: func(ctx context.Context, payload json.RawMessage) error {
			var p NotificationPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("decode %s payload: %w", TaskSendNotification, err)
			}
			deliverNotification(log, p)
			return nil
		},
	}
}

// ReconcileOptions are the queue settings for a reconcile_pending task.
func ReconcileOptions() []tasks.Option {
	return []tasks.Option{
		tasks.MaxAttempts(ReconcileMaxAttempts),
		tasks.BaseDelay(ReconcileBaseDelay),
	}
}

package usecase

import (
	"context"
	"time"

	"room-booking/internal/tasks"
	"room-booking/pkg/clock"

	"go.uber.org/zap"
)

const (
	EventCreated     = "created"
	EventConfirmed   = "confirmed"
	EventCanceled    = "canceled"
	EventHoldExpired = "hold_expired"
)

// Notifier announces reservation lifecycle events. It never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, reservationID int64, event string)
}

type NotificationPayload struct {
	ReservationID int64  `json:"reservation_id"`
	Event         string `json:"event"`
}

type taskNotifier struct {
	scheduler tasks.Scheduler
	clock     clock.Clock
	log       *zap.Logger
}

// NewTaskNotifier returns a Notifier that enqueues send_notification tasks.
func NewTaskNotifier(scheduler tasks.Scheduler, clk clock.Clock, log *zap.Logger) Notifier {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &taskNotifier{
		scheduler: scheduler,
		clock:     clk,
		log:       log.With(zap.String("service", "notifier")),
	}
}

func (n *taskNotifier) Notify(ctx context.Context, reservationID int64, event string) {
	_, err := n.scheduler.Schedule(ctx, TaskSendNotification,
		NotificationPayload{ReservationID: reservationID, Event: event},
		n.clock.Now(),
		tasks.MaxAttempts(3),
		tasks.BaseDelay(30*time.Second),
	)
	if err != nil {
		n.log.Error("Failed to enqueue notification",
			zap.Error(err),
			zap.Int64("reservation_id", reservationID),
			zap.String("event", event),
		)
	}
}

// deliverNotification stands in for a real channel (email, chat); it only logs.
func deliverNotification(log *zap.Logger, p NotificationPayload) {
	log.Info("Reservation notification",
		zap.Int64("reservation_id", p.ReservationID),
		zap.String("event", p.Event),
	)
}

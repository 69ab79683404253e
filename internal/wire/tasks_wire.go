package wire

import (
	"time"

	"room-booking/internal/data/repository"
	"room-booking/internal/tasks"
	"room-booking/internal/usecase"
	"room-booking/pkg/clock"
	"room-booking/pkg/utils"

	"go.uber.org/zap"
)

// sessionSweepInterval is how often expired sessions are purged.
const sessionSweepInterval = time.Hour

// wireTasks builds the task runner with every handler registered and the
// periodic triggers for reconciliation and session cleanup.
func wireTasks(
	repo *repository.Repository,
	queue tasks.Scheduler,
	service *usecase.Service,
	config *utils.Config,
	clk clock.Clock,
	log *zap.Logger,
) (*tasks.Runner, []*tasks.Periodic) {
	runner := tasks.NewRunner(repo.Task, clk, log,
		tasks.WithPollInterval(config.Tasks.PollInterval),
		tasks.WithLease(config.Tasks.Lease),
		tasks.WithConcurrency(config.Tasks.Concurrency),
		tasks.WithBatchSize(config.Tasks.BatchSize),
	)
	for name, h := range usecase.TaskHandlers(service, log) {
		runner.Register(name, h)
	}

	periodic := []*tasks.Periodic{
		{
			Scheduler: queue,
			Name:      usecase.TaskReconcilePending,
			Interval:  config.Tasks.SweepInterval,
			Options:   usecase.ReconcileOptions(),
			Log:       log,
			Now:       clk.Now,
		},
		{
			Scheduler: queue,
			Name:      usecase.TaskCleanSessions,
			Interval:  sessionSweepInterval,
			Log:       log,
			Now:       clk.Now,
		},
	}

	return runner, periodic
}

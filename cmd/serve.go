package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"room-booking/internal/tasks"
	"room-booking/internal/wire"
	"room-booking/pkg/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var migrateUp bool
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the task runner and the periodic sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if migrateUp {
				applied, err := database.Migrate(ctx, rt.db)
				if err != nil {
					return err
				}
				if len(applied) > 0 {
					rt.logger.Info("Migrations applied", zap.Strings("versions", applied))
				}
			}

			// Wire all dependencies
			app, err := wire.Wiring(rt.repo, rt.config, rt.logger)
			if err != nil {
				return err
			}

			rt.logger.Info("Starting application",
				zap.String("app", rt.config.App.Name),
				zap.String("port", rt.config.App.Port),
				zap.Bool("debug", rt.config.App.Debug),
				zap.Bool("worker", withWorker),
			)

			var wg sync.WaitGroup
			if withWorker {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = app.Runner.Run(ctx)
				}()
				for _, p := range app.Periodic {
					wg.Add(1)
					go func(p *tasks.Periodic) {
						defer wg.Done()
						_ = p.Run(ctx)
					}(p)
				}
			}

			err = APIServer(ctx, app.Router, rt.config.App.Port, rt.logger)
			cancel()
			wg.Wait()
			return err
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().BoolVar(&withWorker, "worker", true, "run the task runner and periodic sweep in this process")
	return cmd
}

// APIServer serves handler until ctx is canceled, then drains in-flight
// requests.
func APIServer(ctx context.Context, handler http.Handler, port string, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

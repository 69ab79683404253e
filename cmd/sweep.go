package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"room-booking/internal/wire"

	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one reconciliation pass over expired pending holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap()
			if err != nil {
				return err
			}
			defer rt.Close()

			app, err := wire.Wiring(rt.repo, rt.config, rt.logger)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			canceled, err := app.Service.Expiry.ReconcilePending(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "canceled %d expired hold(s)\n", canceled)
			return err
		},
	}
}

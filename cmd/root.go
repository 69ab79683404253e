package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var envFile string

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "room-booking",
		Short:        "Room reservation service with timed holds",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional .env file; environment variables take precedence")

	root.AddCommand(newServeCmd())
	root.AddCommand(newSweepCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newUserCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

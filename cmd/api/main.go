package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// NewRootCmd creates the root command. Running it without a subcommand serves
// the API.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "parkpro-api",
		Short:         "ParkPro core API: auth, recovery, parking, bookings and fastag",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runServe,
	}
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	return cmd
}

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

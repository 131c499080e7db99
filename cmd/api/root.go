package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the apextrades CLI. Running it without a subcommand serves the API.
func NewRootCmd() *cobra.Command {
	serve := NewServeCmd()

	cmd := &cobra.Command{
		Use:          "apextrades",
		Short:        "ApexTrades account API",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}

	cmd.AddCommand(serve)
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

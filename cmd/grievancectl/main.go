package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spec-kit/grievance-service/internal/cli"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "grievancectl",
		Short:   "Operate the grievance workflow engine",
		Version: version,
		Long: `grievancectl runs the grievance workflow engine and its maintenance jobs.

Use "serve" to run the API with the periodic sweeps, "sweep" to run a
single SLA or overdue pass, "sla" to inspect one case and "analytics"
to print the performance dashboard.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.SweepCmd())
	rootCmd.AddCommand(cli.SLACmd())
	rootCmd.AddCommand(cli.AnalyticsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

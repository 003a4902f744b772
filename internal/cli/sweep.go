package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spec-kit/grievance-service/internal/service"
)

var sweepJobs = map[string]string{
	"sla":     service.JobSLASweep,
	"overdue": service.JobOverdueSweep,
}

// SweepCmd runs one sweep immediately.
func SweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "sweep [sla|overdue]",
		Short:     "Run the SLA or overdue sweep once",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"sla", "overdue"},
		RunE: func(cmd *cobra.Command, args []string) error {
			job, ok := sweepJobs[args[0]]
			if !ok {
				return fmt.Errorf("unknown sweep %q (want sla or overdue)", args[0])
			}
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer shutdown(a)

			report, err := a.Scheduler.RunOnce(cmd.Context(), job)
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}
			printSweepReport(cmd, report)
			return nil
		},
	}
}

func printSweepReport(cmd *cobra.Command, report service.SweepReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sweep: %s (%s)\n", report.Job, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  cases:     %d\n", report.Total)
	fmt.Fprintf(out, "  changed:   %d\n", report.Changed)
	fmt.Fprintf(out, "  escalated: %s\n", color.New(color.FgYellow).Sprint(report.Escalated))
	failed := fmt.Sprint(len(report.Failures))
	if len(report.Failures) > 0 {
		failed = color.New(color.FgRed).Sprint(failed)
	}
	fmt.Fprintf(out, "  failed:    %s\n", failed)
	for _, f := range report.Failures {
		fmt.Fprintf(out, "    %s: %v\n", f.CaseID, f.Err)
	}
}

package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spec-kit/grievance-service/internal/service"
)

var tierColors = map[service.SLATier]*color.Color{
	service.SLATierOnTrack:            color.New(color.FgGreen),
	service.SLATierApproachingWarning: color.New(color.FgCyan),
	service.SLATierWarning:            color.New(color.FgYellow),
	service.SLATierApproachingBreach:  color.New(color.FgHiYellow, color.Bold),
	service.SLATierBreached:           color.New(color.FgRed),
	service.SLATierCriticalBreach:     color.New(color.FgHiRed, color.Bold),
}

func tierLabel(tier service.SLATier) string {
	if c, ok := tierColors[tier]; ok {
		return c.Sprint(string(tier))
	}
	return string(tier)
}

// SLACmd prints the SLA position of a case.
func SLACmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sla [case-id]",
		Short: "Show the SLA status of a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer shutdown(a)

			st, err := a.CaseService.GetSLA(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to load SLA: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Case:      %s\n", st.CaseNumber)
			fmt.Fprintf(out, "Priority:  %s\n", st.Priority)
			fmt.Fprintf(out, "Tier:      %s\n", tierLabel(st.Tier))
			fmt.Fprintf(out, "Risk:      %s\n", st.Risk)
			fmt.Fprintf(out, "Target:    %s\n", st.TargetAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Progress:  %s\n", st.Summary())
			return nil
		},
	}
}

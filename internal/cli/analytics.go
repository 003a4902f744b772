package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/service"
)

// AnalyticsCmd prints the performance dashboard.
func AnalyticsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Print the performance dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			timeRange, _ := cmd.Flags().GetString("range")
			asJSON, _ := cmd.Flags().GetBool("json")

			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer shutdown(a)

			dashboard, err := a.Analytics.Dashboard(cmd.Context(), timeRange)
			if err != nil {
				return fmt.Errorf("failed to build dashboard: %w", err)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(dashboard)
			}
			printDashboard(cmd.OutOrStdout(), dashboard)
			return nil
		},
	}
	cmd.Flags().String("range", "30d", "time range: 7d|30d|90d|365d (or week|month|quarter|year)")
	cmd.Flags().Bool("json", false, "print the full dashboard as JSON")
	return cmd
}

func printDashboard(out io.Writer, d *service.Dashboard) {
	fmt.Fprintf(out, "Dashboard %s (%s .. %s)\n", d.TimeRange, d.From.Format("2006-01-02"), d.To.Format("2006-01-02"))
	if d.Partial {
		fmt.Fprintf(out, "  partial: %d window(s) unavailable\n", len(d.MissingWindows))
	}
	fmt.Fprintf(out, "  cases: %d  resolved: %d  pending: %d  escalated: %d\n",
		d.Core.TotalCases, d.Core.ResolvedCases, d.Core.PendingCases, d.Core.EscalatedCases)
	fmt.Fprintf(out, "  resolution rate: %.1f%%  avg resolution: %.1fh\n",
		d.Core.ResolutionRate*100, d.Core.AverageResolutionHours)
	fmt.Fprintf(out, "  SLA compliance: %.1f%%  breach rate: %.1f%%  at risk now: %d\n",
		d.SLA.OverallCompliance*100, d.SLA.BreachRate*100, d.Predictions.CasesAtSLARisk)
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tCASES\tAVG HOURS\tTREND")
	fmt.Fprintln(w, "--------\t-----\t---------\t-----")
	categories := make([]domain.GrievanceCategory, 0, len(d.Categories.CasesByCategory))
	for category := range d.Categories.CasesByCategory {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	for _, category := range categories {
		fmt.Fprintf(w, "%s\t%d\t%.1f\t%+.2f\n",
			category,
			d.Categories.CasesByCategory[category],
			d.Categories.ResolutionHoursByCategory[category],
			d.Predictions.CategoryTrends[category])
	}
	w.Flush()
}

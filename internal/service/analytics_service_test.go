package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/grievance-service/internal/domain"
	apperrors "github.com/spec-kit/grievance-service/pkg/util/errorutil"
)

func TestParseTimeRange(t *testing.T) {
	day := 24 * time.Hour
	tests := map[string]time.Duration{
		"7d":      7 * day,
		"week":    7 * day,
		"30d":     30 * day,
		"Quarter": 90 * day,
		"365d":    365 * day,
		"":        30 * day,
		"forever": 30 * day,
	}
	for label, want := range tests {
		assert.Equal(t, want, ParseTimeRange(label), label)
	}
}

func TestWeekOfYear(t *testing.T) {
	assert.Equal(t, "2024-W09", weekOfYear(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-W10", weekOfYear(time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-W01", weekOfYear(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

// analyticsFixture builds three cases over three days and evaluates at day ten:
// A resolved after 30h with feedback, B still open, C escalated.
func analyticsFixture(t *testing.T) (*engine, map[string]*domain.Case) {
	t.Helper()
	e := newEngine(t)
	ctx := context.Background()
	cases := map[string]*domain.Case{}

	cases["A"] = e.submit(t, CaseCreateInput{})
	e.clock.Advance(24 * time.Hour)
	cases["B"] = e.submit(t, CaseCreateInput{ComplainantID: "citizen-2"})
	e.clock.Advance(6 * time.Hour)
	_, err := e.cases.ResolveCase(ctx, cases["A"].ID, "Payment released", paymentSpecialist)
	require.NoError(t, err)
	_, err = e.cases.RecordFeedback(ctx, cases["A"].ID, domain.SatisfactionSatisfied, "", "")
	require.NoError(t, err)
	e.clock.Advance(18 * time.Hour)
	cases["C"] = e.submit(t, CaseCreateInput{
		ComplainantID: "citizen-3",
		Subject:       "Bribery at the office",
		Description:   "An officer demanded a fee",
		Category:      domain.CategoryCorruption,
	})
	e.clock.Advance(2 * time.Hour)
	_, _, err = e.cases.EscalateCase(ctx, cases["C"].ID, TriggerCustomerComplaint, "", "supervisor-1")
	require.NoError(t, err)
	e.clock.At = epoch.Add(240 * time.Hour)
	return e, cases
}

func TestDashboard(t *testing.T) {
	e, _ := analyticsFixture(t)

	d, err := e.analytics.Dashboard(context.Background(), "30d")
	require.NoError(t, err)

	assert.False(t, d.Partial)
	assert.Equal(t, CoreMetrics{
		TotalCases:             3,
		ResolvedCases:          1,
		PendingCases:           2,
		EscalatedCases:         1,
		ResolutionRate:         1.0 / 3,
		AverageResolutionHours: 30,
	}, d.Core)

	assert.InDelta(t, 1.0/3, d.SLA.OverallCompliance, 1e-9)
	assert.Equal(t, 2, d.SLA.BreachedCases)
	assert.InDelta(t, 1.0/3, d.SLA.ComplianceByPriority[domain.CasePriorityMedium], 1e-9)

	assert.Equal(t, 2, d.Categories.CasesByCategory[domain.CategoryPaymentIssue])
	assert.Equal(t, 30.0, d.Categories.ResolutionHoursByCategory[domain.CategoryPaymentIssue])
	if diff := cmp.Diff([]domain.GrievanceCategory{domain.CategoryPaymentIssue, domain.CategoryCorruption}, d.Categories.MostProblematic); diff != "" {
		t.Errorf("most problematic mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(map[string]int{"2024-W09": 2, "2024-W10": 1}, d.Trends.WeeklySubmissions); diff != "" {
		t.Errorf("weekly submissions mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, map[string]int{"2024-03-02": 1}, d.Trends.DailyResolutions)
	assert.InDelta(t, 1.0/30, d.Trends.ResolutionVelocity, 1e-9)

	assert.Equal(t, 1, d.Escalations.TotalEscalations)
	assert.Equal(t, map[int]int{1: 1}, d.Escalations.ByLevel)
	assert.Equal(t, 2.0, d.Escalations.AverageHoursToEscalate)
	assert.Equal(t, 0.25, d.Escalations.WeeklyAverage)

	assert.InDelta(t, 1.0/3, d.Satisfaction.FeedbackResponseRate, 1e-9)
	assert.Equal(t, 4.0, d.Satisfaction.AverageScore)
	assert.Equal(t, 1.0, d.Satisfaction.SatisfactionRate)

	assert.Equal(t, 2, d.Predictions.CasesAtSLARisk)
	assert.Equal(t, 0.0, d.Predictions.CategoryTrends[domain.CategoryPaymentIssue])
}

func TestDashboardPartialWhenOneWindowFails(t *testing.T) {
	e, cases := analyticsFixture(t)
	e.store.breakWindowContaining(cases["A"].SubmittedAt)

	d, err := e.analytics.Dashboard(context.Background(), "30d")

	require.NoError(t, err)
	assert.True(t, d.Partial)
	assert.Len(t, d.MissingWindows, 1)
	assert.Equal(t, 2, d.Core.TotalCases)
}

func TestDashboardFailsWhenStoreIsDown(t *testing.T) {
	e, _ := analyticsFixture(t)
	e.store.failWindow.Store(true)

	_, err := e.analytics.Dashboard(context.Background(), "7d")

	assert.True(t, apperrors.IsDependency(err))
}

func TestDashboardEmpty(t *testing.T) {
	e := newEngine(t)

	d, err := e.analytics.Dashboard(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, "30d", d.TimeRange)
	assert.Zero(t, d.Core.TotalCases)
	assert.Zero(t, d.Core.ResolutionRate)
	assert.Nil(t, d.Satisfaction.Distribution)
}

func TestRealTime(t *testing.T) {
	e, _ := analyticsFixture(t)

	summary, err := e.analytics.RealTime(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.TodaySubmissions)
	assert.Equal(t, 2, summary.SLAWarnings)
	assert.Zero(t, summary.UrgentCases)

	e.submit(t, CaseCreateInput{ComplainantID: "citizen-4", Subject: "URGENT: no food left"})
	summary, err = e.analytics.RealTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TodaySubmissions)
	assert.Equal(t, 1, summary.UrgentCases)
	assert.Equal(t, 2, summary.SLAWarnings)
}

func TestRoutingAnalytics(t *testing.T) {
	e := newEngine(t)
	first := e.submit(t, CaseCreateInput{})
	e.submit(t, CaseCreateInput{ComplainantID: "citizen-2"})
	_, _, err := e.cases.EscalateCase(context.Background(), first.ID, TriggerComplexity, "", "supervisor-1")
	require.NoError(t, err)

	r, err := e.analytics.Routing(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, r.CasesRouted)
	assert.Equal(t, 0.5, r.RoutingAccuracy)
	assert.Equal(t, 1, r.WorkloadDistribution[paymentSpecialist])
	assert.Equal(t, 1, r.WorkloadDistribution["payment.supervisor@dswd.gov.ph"])
	assert.False(t, r.Partial)
}

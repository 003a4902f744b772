package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/repository"
	apperrors "github.com/spec-kit/grievance-service/pkg/util/errorutil"
)

const (
	analyticsWindow       = 7 * 24 * time.Hour
	analyticsLoaders      = 4
	slaRiskThreshold      = 0.7
	routingAnalyticsSpan  = 7 * 24 * time.Hour
	defaultAnalyticsRange = 30 * 24 * time.Hour
)

var analyticsRanges = map[string]time.Duration{
	"7d":      7 * 24 * time.Hour,
	"week":    7 * 24 * time.Hour,
	"30d":     30 * 24 * time.Hour,
	"month":   30 * 24 * time.Hour,
	"90d":     90 * 24 * time.Hour,
	"quarter": 90 * 24 * time.Hour,
	"365d":    365 * 24 * time.Hour,
	"year":    365 * 24 * time.Hour,
}

// ParseTimeRange maps a range label onto a duration. Unknown labels fall back to 30 days.
func ParseTimeRange(label string) time.Duration {
	if d, ok := analyticsRanges[strings.ToLower(strings.TrimSpace(label))]; ok {
		return d
	}
	return defaultAnalyticsRange
}

// Window is a half-open [From, To) submission interval.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type CoreMetrics struct {
	TotalCases             int     `json:"total_cases"`
	ResolvedCases          int     `json:"resolved_cases"`
	PendingCases           int     `json:"pending_cases"`
	EscalatedCases         int     `json:"escalated_cases"`
	ResolutionRate         float64 `json:"resolution_rate"`
	AverageResolutionHours float64 `json:"average_resolution_hours"`
}

type SLAPerformance struct {
	ComplianceByPriority map[domain.CasePriority]float64 `json:"compliance_by_priority"`
	OverallCompliance    float64                         `json:"overall_compliance"`
	BreachedCases        int                             `json:"breached_cases"`
	BreachRate           float64                         `json:"breach_rate"`
}

type CategoryAnalysis struct {
	CasesByCategory           map[domain.GrievanceCategory]int     `json:"cases_by_category"`
	ResolutionHoursByCategory map[domain.GrievanceCategory]float64 `json:"resolution_hours_by_category"`
	MostProblematic           []domain.GrievanceCategory           `json:"most_problematic"`
}

type ResolutionTrends struct {
	DailyResolutions   map[string]int `json:"daily_resolutions"`
	WeeklySubmissions  map[string]int `json:"weekly_submissions"`
	ResolutionVelocity float64        `json:"resolution_velocity"`
}

type StaffPerformance struct {
	CasesByAssignee           map[string]int     `json:"cases_by_assignee"`
	ResolutionRateByAssignee  map[string]float64 `json:"resolution_rate_by_assignee"`
	ResolutionHoursByAssignee map[string]float64 `json:"resolution_hours_by_assignee"`
}

type EscalationAnalytics struct {
	TotalEscalations       int                              `json:"total_escalations"`
	ByCategory             map[domain.GrievanceCategory]int `json:"by_category"`
	ByLevel                map[int]int                      `json:"by_level"`
	AverageHoursToEscalate float64                          `json:"average_hours_to_escalate"`
	CriticalEscalations    int                              `json:"critical_escalations"`
	WeeklyAverage          float64                          `json:"weekly_average"`
}

type SatisfactionMetrics struct {
	Distribution         map[domain.Satisfaction]int `json:"distribution,omitempty"`
	AverageScore         float64                     `json:"average_score,omitempty"`
	SatisfactionRate     float64                     `json:"satisfaction_rate,omitempty"`
	FeedbackResponseRate float64                     `json:"feedback_response_rate"`
}

type PredictiveInsights struct {
	PredictedNextWeekVolume int                                  `json:"predicted_next_week_volume"`
	CategoryTrends          map[domain.GrievanceCategory]float64 `json:"category_trends"`
	CasesAtSLARisk          int                                  `json:"cases_at_sla_risk"`
}

// Dashboard is the full performance summary for a time range.
type Dashboard struct {
	TimeRange      string              `json:"time_range"`
	From           time.Time           `json:"from"`
	To             time.Time           `json:"to"`
	GeneratedAt    time.Time           `json:"generated_at"`
	Partial        bool                `json:"partial"`
	MissingWindows []Window            `json:"missing_windows,omitempty"`
	Core           CoreMetrics         `json:"core_metrics"`
	SLA            SLAPerformance      `json:"sla_performance"`
	Categories     CategoryAnalysis    `json:"category_analysis"`
	Trends         ResolutionTrends    `json:"resolution_trends"`
	Staff          StaffPerformance    `json:"staff_performance"`
	Escalations    EscalationAnalytics `json:"escalation_analytics"`
	Satisfaction   SatisfactionMetrics `json:"satisfaction_metrics"`
	Predictions    PredictiveInsights  `json:"predictive_insights"`
}

// RealTimeSummary is the today view.
type RealTimeSummary struct {
	TodaySubmissions int       `json:"today_submissions"`
	TodayResolutions int       `json:"today_resolutions"`
	UrgentCases      int       `json:"urgent_cases"`
	SLAWarnings      int       `json:"sla_warnings"`
	LastUpdated      time.Time `json:"last_updated"`
}

// RoutingAnalytics summarises recent routing quality.
type RoutingAnalytics struct {
	CasesRouted            int            `json:"cases_routed"`
	AverageResolutionHours float64        `json:"average_resolution_hours"`
	RoutingAccuracy        float64        `json:"routing_accuracy"`
	WorkloadDistribution   map[string]int `json:"workload_distribution"`
	Partial                bool           `json:"partial"`
}

// AnalyticsDependencies wires the analytics service.
type AnalyticsDependencies struct {
	Store    repository.CaseRepository
	SLA      *SLAClock
	Workload repository.WorkloadTracker
	Logger   *zap.Logger
	// StoreTimeout bounds each store query. Zero disables the deadline.
	StoreTimeout time.Duration
}

// AnalyticsService is a read-only aggregator over the case store.
type AnalyticsService struct {
	store    repository.CaseRepository
	sla      *SLAClock
	workload repository.WorkloadTracker
	logger   *zap.Logger
	timeout  time.Duration
}

// NewAnalyticsService builds the aggregator.
func NewAnalyticsService(deps AnalyticsDependencies) *AnalyticsService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{
		store:    deps.Store,
		sla:      deps.SLA,
		workload: deps.Workload,
		logger:   logger,
		timeout:  deps.StoreTimeout,
	}
}

type windowLoad struct {
	cases   []*domain.Case
	missing []Window
}

// loadRange reads [from, to) in weekly windows. A failing window is skipped
// and reported; the call only fails when every window failed.
func (s *AnalyticsService) loadRange(ctx context.Context, from, to time.Time) (windowLoad, error) {
	var windows []Window
	for start := from; start.Before(to); start = start.Add(analyticsWindow) {
		end := start.Add(analyticsWindow)
		if end.After(to) {
			end = to
		}
		windows = append(windows, Window{From: start, To: end})
	}

	results := make([][]*domain.Case, len(windows))
	failed := make([]error, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(analyticsLoaders)
	for i, w := range windows {
		i, w := i, w
		g.Go(func() error {
			sctx, cancel := storeDeadline(gctx, s.timeout)
			defer cancel()
			cases, err := s.store.FindBySubmittedBetween(sctx, w.From, w.To)
			if err != nil {
				failed[i] = err
				return nil
			}
			results[i] = cases
			return nil
		})
	}
	_ = g.Wait()

	var load windowLoad
	var lastErr error
	for i, w := range windows {
		if failed[i] != nil {
			lastErr = failed[i]
			load.missing = append(load.missing, w)
			s.logger.Warn("analytics window unavailable",
				zap.Time("from", w.From), zap.Time("to", w.To), zap.Error(failed[i]))
			continue
		}
		load.cases = append(load.cases, results[i]...)
	}
	if len(windows) > 0 && len(load.missing) == len(windows) {
		return load, apperrors.NewDependencyError("case store", lastErr)
	}
	sort.SliceStable(load.cases, func(i, j int) bool {
		return load.cases[i].SubmittedAt.Before(load.cases[j].SubmittedAt)
	})
	return load, nil
}

// Dashboard builds the performance dashboard for a time range label.
func (s *AnalyticsService) Dashboard(ctx context.Context, timeRange string) (*Dashboard, error) {
	if timeRange == "" {
		timeRange = "30d"
	}
	now := s.sla.Now()
	from := now.Add(-ParseTimeRange(timeRange))
	// include cases submitted at exactly now
	to := now.Add(time.Nanosecond)

	load, err := s.loadRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	cases := load.cases

	dashboard := &Dashboard{
		TimeRange:      timeRange,
		From:           from,
		To:             now,
		GeneratedAt:    now,
		Partial:        len(load.missing) > 0,
		MissingWindows: load.missing,
		Core:           coreMetrics(cases),
		SLA:            slaPerformance(cases),
		Categories:     categoryAnalysis(cases),
		Trends:         resolutionTrends(cases, from, now),
		Staff:          staffPerformance(cases),
		Escalations:    escalationAnalytics(cases, from, now),
		Satisfaction:   satisfactionMetrics(cases),
	}

	atRisk, err := s.casesAtRisk(ctx, now)
	if err != nil {
		dashboard.Partial = true
		s.logger.Warn("sla risk unavailable", zap.Error(err))
	}
	dashboard.Predictions = predictiveInsights(cases, from, now, atRisk)
	return dashboard, nil
}

func (s *AnalyticsService) casesAtRisk(ctx context.Context, now time.Time) (int, error) {
	sctx, cancel := storeDeadline(ctx, s.timeout)
	defer cancel()
	open, err := s.store.FindByStatusIn(sctx, domain.OpenStatuses)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, c := range open {
		if s.sla.Evaluate(c, now).PercentageElapsed > slaRiskThreshold {
			count++
		}
	}
	return count, nil
}

// RealTime summarises today's activity and the current SLA pressure.
func (s *AnalyticsService) RealTime(ctx context.Context) (*RealTimeSummary, error) {
	now := s.sla.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	sctx, cancel := storeDeadline(ctx, s.timeout)
	defer cancel()
	today, err := s.store.FindBySubmittedBetween(sctx, startOfDay, startOfDay.Add(24*time.Hour))
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	open, err := s.store.FindByStatusIn(sctx, domain.OpenStatuses)
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	summary := &RealTimeSummary{TodaySubmissions: len(today), LastUpdated: now}
	for _, c := range today {
		if c.ResolvedAt != nil && !c.ResolvedAt.Before(startOfDay) {
			summary.TodayResolutions++
		}
	}
	for _, c := range open {
		if c.Priority == domain.CasePriorityCritical {
			summary.UrgentCases++
		}
		if s.sla.Evaluate(c, now).PercentageElapsed > slaRiskThreshold {
			summary.SLAWarnings++
		}
	}
	return summary, nil
}

// Routing summarises routing quality over the last seven days.
func (s *AnalyticsService) Routing(ctx context.Context) (*RoutingAnalytics, error) {
	now := s.sla.Now()
	load, err := s.loadRange(ctx, now.Add(-routingAnalyticsSpan), now.Add(time.Nanosecond))
	if err != nil {
		return nil, err
	}
	out := &RoutingAnalytics{
		CasesRouted:            len(load.cases),
		AverageResolutionHours: averageResolutionHours(load.cases),
		Partial:                len(load.missing) > 0,
		WorkloadDistribution:   map[string]int{},
	}
	if len(load.cases) > 0 {
		accurate := 0
		for _, c := range load.cases {
			if c.EscalationLevel == 0 {
				accurate++
			}
		}
		out.RoutingAccuracy = float64(accurate) / float64(len(load.cases))
	}
	if s.workload != nil {
		wctx, cancel := storeDeadline(ctx, s.timeout)
		distribution, err := s.workload.Distribution(wctx)
		cancel()
		if err != nil {
			out.Partial = true
			s.logger.Warn("workload distribution unavailable", zap.Error(err))
		} else {
			out.WorkloadDistribution = distribution
		}
	}
	return out, nil
}

func resolutionHours(c *domain.Case) (float64, bool) {
	if c.ResolvedAt == nil {
		return 0, false
	}
	return float64(int64(c.ResolvedAt.Sub(c.SubmittedAt) / time.Hour)), true
}

func averageResolutionHours(cases []*domain.Case) float64 {
	var sum float64
	n := 0
	for _, c := range cases {
		if h, ok := resolutionHours(c); ok {
			sum += h
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

func coreMetrics(cases []*domain.Case) CoreMetrics {
	m := CoreMetrics{TotalCases: len(cases)}
	for _, c := range cases {
		if c.ResolvedAt != nil {
			m.ResolvedCases++
		} else {
			m.PendingCases++
		}
		if c.EscalationLevel > 0 {
			m.EscalatedCases++
		}
	}
	m.ResolutionRate = ratio(m.ResolvedCases, m.TotalCases)
	m.AverageResolutionHours = averageResolutionHours(cases)
	return m
}

// slaCompliant reports whether the case was resolved on or before its target.
func slaCompliant(c *domain.Case) bool {
	if c.ResolvedAt == nil || c.ResolutionTargetAt == nil {
		return false
	}
	return !c.ResolvedAt.After(*c.ResolutionTargetAt)
}

func slaPerformance(cases []*domain.Case) SLAPerformance {
	perf := SLAPerformance{ComplianceByPriority: map[domain.CasePriority]float64{}}
	totals := map[domain.CasePriority]int{}
	compliant := map[domain.CasePriority]int{}
	all := 0
	for _, c := range cases {
		totals[c.Priority]++
		if slaCompliant(c) {
			compliant[c.Priority]++
			all++
		}
	}
	for priority, total := range totals {
		perf.ComplianceByPriority[priority] = ratio(compliant[priority], total)
	}
	perf.OverallCompliance = ratio(all, len(cases))
	perf.BreachedCases = len(cases) - all
	perf.BreachRate = ratio(perf.BreachedCases, len(cases))
	return perf
}

func categoryAnalysis(cases []*domain.Case) CategoryAnalysis {
	out := CategoryAnalysis{
		CasesByCategory:           map[domain.GrievanceCategory]int{},
		ResolutionHoursByCategory: map[domain.GrievanceCategory]float64{},
	}
	byCategory := map[domain.GrievanceCategory][]*domain.Case{}
	for _, c := range cases {
		out.CasesByCategory[c.Category]++
		byCategory[c.Category] = append(byCategory[c.Category], c)
	}
	for _, category := range domain.Categories {
		out.ResolutionHoursByCategory[category] = averageResolutionHours(byCategory[category])
	}

	ranked := make([]domain.GrievanceCategory, 0, len(out.CasesByCategory))
	for _, category := range domain.Categories {
		if out.CasesByCategory[category] > 0 {
			ranked = append(ranked, category)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return out.CasesByCategory[ranked[i]] > out.CasesByCategory[ranked[j]]
	})
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}
	out.MostProblematic = ranked
	return out
}

// weekOfYear labels a date as YYYY-Www using day-of-year/7+1.
func weekOfYear(t time.Time) string {
	return fmt.Sprintf("%d-W%02d", t.Year(), t.YearDay()/7+1)
}

func resolutionTrends(cases []*domain.Case, from, to time.Time) ResolutionTrends {
	out := ResolutionTrends{
		DailyResolutions:  map[string]int{},
		WeeklySubmissions: map[string]int{},
	}
	resolved := 0
	for _, c := range cases {
		out.WeeklySubmissions[weekOfYear(c.SubmittedAt)]++
		if c.ResolvedAt != nil {
			out.DailyResolutions[c.ResolvedAt.Format("2006-01-02")]++
			resolved++
		}
	}
	if days := int(to.Sub(from) / (24 * time.Hour)); days > 0 {
		out.ResolutionVelocity = float64(resolved) / float64(days)
	}
	return out
}

func staffPerformance(cases []*domain.Case) StaffPerformance {
	out := StaffPerformance{
		CasesByAssignee:           map[string]int{},
		ResolutionRateByAssignee:  map[string]float64{},
		ResolutionHoursByAssignee: map[string]float64{},
	}
	byAssignee := map[string][]*domain.Case{}
	for _, c := range cases {
		if c.AssigneeID == nil {
			continue
		}
		byAssignee[*c.AssigneeID] = append(byAssignee[*c.AssigneeID], c)
	}
	for staffID, held := range byAssignee {
		out.CasesByAssignee[staffID] = len(held)
		resolved := 0
		for _, c := range held {
			if c.ResolvedAt != nil {
				resolved++
			}
		}
		out.ResolutionRateByAssignee[staffID] = ratio(resolved, len(held))
		out.ResolutionHoursByAssignee[staffID] = averageResolutionHours(held)
	}
	return out
}

func weeksBetween(from, to time.Time) int {
	weeks := int(to.Sub(from) / analyticsWindow)
	if weeks < 1 {
		return 1
	}
	return weeks
}

func escalationAnalytics(cases []*domain.Case, from, to time.Time) EscalationAnalytics {
	out := EscalationAnalytics{
		ByCategory: map[domain.GrievanceCategory]int{},
		ByLevel:    map[int]int{},
	}
	var hours float64
	timed := 0
	for _, c := range cases {
		if c.EscalationLevel == 0 {
			continue
		}
		out.TotalEscalations++
		out.ByCategory[c.Category]++
		out.ByLevel[c.EscalationLevel]++
		if c.Priority == domain.CasePriorityCritical {
			out.CriticalEscalations++
		}
		if c.EscalatedAt != nil {
			hours += float64(int64(c.EscalatedAt.Sub(c.SubmittedAt) / time.Hour))
			timed++
		}
	}
	if timed > 0 {
		out.AverageHoursToEscalate = hours / float64(timed)
	}
	out.WeeklyAverage = float64(out.TotalEscalations) / float64(weeksBetween(from, to))
	return out
}

func satisfactionMetrics(cases []*domain.Case) SatisfactionMetrics {
	var out SatisfactionMetrics
	var rated []domain.Satisfaction
	for _, c := range cases {
		if c.Satisfaction != nil {
			rated = append(rated, *c.Satisfaction)
		}
	}
	out.FeedbackResponseRate = ratio(len(rated), len(cases))
	if len(rated) == 0 {
		return out
	}
	out.Distribution = map[domain.Satisfaction]int{}
	total, positive := 0, 0
	for _, s := range rated {
		out.Distribution[s]++
		total += s.Score()
		if s.Positive() {
			positive++
		}
	}
	out.AverageScore = float64(total) / float64(len(rated))
	out.SatisfactionRate = ratio(positive, len(rated))
	return out
}

// categoryTrends compares the second half of the period against the first,
// splitting the submission-ordered cases at the midpoint.
func categoryTrends(cases []*domain.Case) map[domain.GrievanceCategory]float64 {
	mid := len(cases) / 2
	first := map[domain.GrievanceCategory]int{}
	second := map[domain.GrievanceCategory]int{}
	for i, c := range cases {
		if i < mid {
			first[c.Category]++
		} else {
			second[c.Category]++
		}
	}
	trends := make(map[domain.GrievanceCategory]float64, len(domain.Categories))
	for _, category := range domain.Categories {
		if first[category] == 0 {
			trends[category] = 0
			continue
		}
		trends[category] = float64(second[category]-first[category]) / float64(first[category])
	}
	return trends
}

func predictiveInsights(cases []*domain.Case, from, to time.Time, atRisk int) PredictiveInsights {
	return PredictiveInsights{
		PredictedNextWeekVolume: len(cases) / weeksBetween(from, to),
		CategoryTrends:          categoryTrends(cases),
		CasesAtSLARisk:          atRisk,
	}
}

package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/grievance-service/internal/config"
	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/events"
	"github.com/spec-kit/grievance-service/internal/observability"
	"github.com/spec-kit/grievance-service/internal/repository"
)

const (
	JobSLASweep     = "sla_sweep"
	JobOverdueSweep = "overdue_sweep"

	significantDelay = 72 * time.Hour
)

var overdueEscalationThresholds = map[domain.CasePriority]time.Duration{
	domain.CasePriorityCritical: 2 * time.Hour,
	domain.CasePriorityHigh:     12 * time.Hour,
}

const defaultOverdueEscalationThreshold = 48 * time.Hour

func overdueThreshold(priority domain.CasePriority) time.Duration {
	if d, ok := overdueEscalationThresholds[priority]; ok {
		return d
	}
	return defaultOverdueEscalationThreshold
}

// CaseFailure records a case a sweep could not process.
type CaseFailure struct {
	CaseID string
	Err    error
}

// SweepReport summarises one sweep run.
type SweepReport struct {
	Job       string
	StartedAt time.Time
	Duration  time.Duration
	Total     int
	Changed   int
	Escalated int
	Failures  []CaseFailure
}

type caseOutcome struct {
	changed   bool
	escalated bool
	err       error
}

// WorkflowOrchestratorDependencies wires the orchestrator.
type WorkflowOrchestratorDependencies struct {
	Store      repository.CaseRepository
	Mutator    *CaseMutator
	SLA        *SLAClock
	Router     *RoutingScorer
	Resolver   *EscalationResolver
	Workload   repository.WorkloadTracker
	Dispatcher events.Dispatcher
	Config     config.WorkflowConfig
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// WorkflowOrchestrator drives new-case intake and the periodic sweeps.
type WorkflowOrchestrator struct {
	store     repository.CaseRepository
	mutator   *CaseMutator
	sla       *SLAClock
	router    *RoutingScorer
	resolver  *EscalationResolver
	workload  repository.WorkloadTracker
	publisher publisher
	cfg       config.WorkflowConfig
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewWorkflowOrchestrator builds the orchestrator.
func NewWorkflowOrchestrator(deps WorkflowOrchestratorDependencies) *WorkflowOrchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := deps.Config
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.EscalationCooldown <= 0 {
		cfg.EscalationCooldown = 24 * time.Hour
	}
	if cfg.TopLevelHandler == "" {
		cfg.TopLevelHandler = config.DefaultTopLevelHandler
	}
	return &WorkflowOrchestrator{
		store:     deps.Store,
		mutator:   deps.Mutator,
		sla:       deps.SLA,
		router:    deps.Router,
		resolver:  deps.Resolver,
		workload:  deps.Workload,
		publisher: publisher{dispatcher: deps.Dispatcher, logger: logger},
		cfg:       cfg,
		logger:    logger,
		metrics:   deps.Metrics,
	}
}

func (o *WorkflowOrchestrator) now() time.Time {
	return o.sla.Now()
}

// ProcessNewCase runs intake for a SUBMITTED case: content priority detection,
// SLA target, acknowledgement, routing and assignment. Re-running it on a case
// that already left SUBMITTED is a no-op.
func (o *WorkflowOrchestrator) ProcessNewCase(ctx context.Context, id string) (*domain.Case, error) {
	var decision RoutingDecision
	saved, changed, err := o.mutator.Mutate(ctx, id, func(c *domain.Case) (bool, error) {
		if c.Status != domain.CaseStatusSubmitted {
			return false, nil
		}
		now := o.now()
		if detected, ok := o.router.DetectPriority(c); ok {
			c.ChangePriority(detected, domain.SystemChange("Priority automatically adjusted based on content analysis", now))
		}
		o.sla.EnsureTarget(c)
		if err := c.Transition(domain.CaseStatusAcknowledged, domain.SystemChange("Case automatically acknowledged by system", now)); err != nil {
			return false, err
		}

		decision = o.router.Route(ctx, c)
		description := "Case assigned based on expertise, workload and performance"
		if decision.Method == RoutingMethodFallback {
			description = "Case assigned to category default after routing fallback"
		}
		if err := c.Assign(decision.Assignee, domain.CaseStatusUnderReview, domain.SystemChange(description, now)); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return saved, nil
	}

	o.incrementWorkload(ctx, decision.Assignee)
	now := o.now()
	payload := map[string]any{
		"priority":          string(saved.Priority),
		"category":          string(saved.Category),
		"resolution_target": saved.ResolutionTargetAt,
	}
	o.publisher.publish(ctx, saved, events.EventCaseAcknowledged, events.AudienceComplainant, complainantRecipient(saved), now, payload)
	o.publisher.publish(ctx, saved, events.EventCaseAssigned, events.AudienceStaff, decision.Assignee, now, payload)

	o.logger.Info("case intake completed",
		zap.String("case_id", saved.ID),
		zap.String("case_number", saved.CaseNumber),
		zap.String("priority", string(saved.Priority)),
		zap.String("staff_id", decision.Assignee),
		zap.String("routing", decision.Method))
	return saved, nil
}

func (o *WorkflowOrchestrator) incrementWorkload(ctx context.Context, staffID string) {
	if o.workload == nil || staffID == "" {
		return
	}
	if err := o.workload.Increment(ctx, staffID); err != nil {
		o.logger.Warn("workload increment failed", zap.String("staff_id", staffID), zap.Error(err))
	}
}

// RunSLASweep evaluates every open case against its SLA.
func (o *WorkflowOrchestrator) RunSLASweep(ctx context.Context) (SweepReport, error) {
	return o.sweep(ctx, JobSLASweep, func(ctx context.Context) ([]*domain.Case, error) {
		return o.store.FindByStatusIn(ctx, domain.OpenStatuses)
	}, o.sweepSLA)
}

// RunOverdueSweep escalates and re-prioritises cases past their target.
func (o *WorkflowOrchestrator) RunOverdueSweep(ctx context.Context) (SweepReport, error) {
	return o.sweep(ctx, JobOverdueSweep, func(ctx context.Context) ([]*domain.Case, error) {
		return o.store.FindOverdue(ctx, o.now())
	}, func(ctx context.Context, c *domain.Case) caseOutcome {
		return o.processOverdue(ctx, c.ID)
	})
}

// EvaluateCase runs the SLA evaluation for a single case.
func (o *WorkflowOrchestrator) EvaluateCase(ctx context.Context, id string) error {
	return o.evaluateSLA(ctx, id).err
}

func (o *WorkflowOrchestrator) sweep(
	ctx context.Context,
	job string,
	load func(context.Context) ([]*domain.Case, error),
	process func(context.Context, *domain.Case) caseOutcome,
) (SweepReport, error) {
	report := SweepReport{Job: job, StartedAt: time.Now()}

	lctx, cancel := o.mutator.storeContext(ctx)
	cases, err := load(lctx)
	cancel()
	if err != nil {
		report.Duration = time.Since(report.StartedAt)
		o.metrics.RecordSweep(job, "failed", report.Duration)
		o.logger.Error("sweep could not load cases", zap.String("job", job), zap.Error(err))
		return report, wrapStoreErr(err)
	}
	report.Total = len(cases)

	outcomes := make([]caseOutcome, len(cases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for i, c := range cases {
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				outcomes[i] = caseOutcome{err: err}
				return nil
			}
			outcomes[i] = o.safeProcess(gctx, c, process)
			return nil
		})
	}
	_ = g.Wait()

	for i, outcome := range outcomes {
		if outcome.err != nil {
			report.Failures = append(report.Failures, CaseFailure{CaseID: cases[i].ID, Err: outcome.err})
			o.logger.Warn("case failed during sweep",
				zap.String("job", job),
				zap.String("case_id", cases[i].ID),
				zap.String("case_number", cases[i].CaseNumber),
				zap.Error(outcome.err))
			continue
		}
		if outcome.changed {
			report.Changed++
		}
		if outcome.escalated {
			report.Escalated++
		}
	}
	report.Duration = time.Since(report.StartedAt)

	outcomeLabel := "ok"
	if len(report.Failures) > 0 {
		outcomeLabel = "partial"
	}
	o.metrics.RecordSweep(job, outcomeLabel, report.Duration)
	o.logger.Info("sweep completed",
		zap.String("job", job),
		zap.Int("total", report.Total),
		zap.Int("changed", report.Changed),
		zap.Int("escalated", report.Escalated),
		zap.Int("failed", len(report.Failures)),
		zap.Duration("duration", report.Duration))
	return report, ctx.Err()
}

func (o *WorkflowOrchestrator) safeProcess(ctx context.Context, c *domain.Case, process func(context.Context, *domain.Case) caseOutcome) (out caseOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = caseOutcome{err: fmt.Errorf("case processing panicked: %v", r)}
		}
	}()
	return process(ctx, c)
}

// sweepSLA finishes intake for cases still sitting in SUBMITTED before
// evaluating them, so an interrupted creation is picked up on the next tick.
func (o *WorkflowOrchestrator) sweepSLA(ctx context.Context, snapshot *domain.Case) caseOutcome {
	intake := false
	if snapshot.Status == domain.CaseStatusSubmitted {
		if _, err := o.ProcessNewCase(ctx, snapshot.ID); err != nil {
			return caseOutcome{err: err}
		}
		intake = true
	}
	out := o.evaluateSLA(ctx, snapshot.ID)
	out.changed = out.changed || intake
	return out
}

type slaSideEffects struct {
	status     SLAStatus
	tierChange bool
	escalation *EscalationResult
}

func (o *WorkflowOrchestrator) evaluateSLA(ctx context.Context, id string) caseOutcome {
	var effects slaSideEffects
	saved, changed, err := o.mutator.Mutate(ctx, id, func(c *domain.Case) (bool, error) {
		effects = slaSideEffects{}
		if !c.IsOpen() {
			return false, nil
		}
		now := o.now()
		targetSet := o.sla.EnsureTarget(c)
		st := o.sla.Evaluate(c, now)
		effects.status = st
		effects.tierChange = st.Tier != lastTier(c)

		description, err := o.applyTier(c, st, effects.tierChange, now, &effects)
		if err != nil {
			return false, err
		}
		if effects.tierChange {
			c.LastSLATier = string(st.Tier)
			c.Record(domain.ActivitySLAMonitoring, domain.SystemChange(description+" "+st.Summary(), now))
		}
		return targetSet || effects.tierChange || effects.escalation != nil, nil
	})
	if err != nil {
		return caseOutcome{err: err}
	}
	if !changed {
		return caseOutcome{}
	}

	if effects.tierChange {
		o.metrics.RecordSLATier(string(effects.status.Tier))
		o.notifyTier(ctx, saved, effects.status)
	}
	if effects.escalation != nil {
		o.resolver.PostEscalation(ctx, saved, *effects.escalation)
	}
	return caseOutcome{changed: true, escalated: effects.escalation != nil}
}

// applyTier performs the tier's state changes on the working copy and returns
// the SLA activity description.
func (o *WorkflowOrchestrator) applyTier(c *domain.Case, st SLAStatus, tierChange bool, now time.Time, effects *slaSideEffects) (string, error) {
	switch st.Tier {
	case SLATierApproachingWarning:
		return "SLA approaching warning threshold", nil
	case SLATierWarning:
		return "SLA warning threshold reached", nil
	case SLATierApproachingBreach:
		plan, err := o.resolver.Plan(c, TriggerSLABreach)
		if err != nil {
			return "", err
		}
		if tierChange {
			o.logger.Info("escalation prepared",
				zap.String("case_number", c.CaseNumber),
				zap.Int("target_level", plan.TargetLevel),
				zap.String("staff_id", plan.TargetAssignee))
		}
		return fmt.Sprintf("SLA approaching breach - escalation prepared (level %d, %s)", plan.TargetLevel, plan.TargetAssignee), nil
	case SLATierBreached:
		if c.EscalatedWithin(o.cfg.EscalationCooldown, now) {
			return "SLA BREACHED - recently escalated, automatic escalation skipped", o.markEscalated(c, tierChange, now)
		}
		plan, err := o.resolver.Plan(c, TriggerSLABreach)
		if err != nil {
			return "", err
		}
		if isNoopEscalation(c, plan) {
			return "SLA BREACHED - already at escalation target", o.markEscalated(c, tierChange, now)
		}
		result, err := o.resolver.Apply(c, plan, "Automated escalation due to SLA breach", domain.SystemChange("", now))
		if err != nil {
			return "", err
		}
		effects.escalation = &result
		return "SLA BREACHED - automated escalation triggered", nil
	case SLATierCriticalBreach:
		if c.EscalatedWithin(o.cfg.EscalationCooldown, now) {
			return "CRITICAL SLA BREACH - recently escalated, automatic escalation skipped", nil
		}
		plan := o.resolver.PlanTopLevel(c, o.cfg.TopLevelHandler)
		if isNoopEscalation(c, plan) {
			return "CRITICAL SLA BREACH - already with top-level handler", nil
		}
		result, err := o.resolver.Apply(c, plan, "Critical SLA breach", domain.SystemChange("", now))
		if err != nil {
			return "", err
		}
		effects.escalation = &result
		return "CRITICAL SLA BREACH - escalated to highest level", nil
	default:
		return "SLA on track", nil
	}
}

// markEscalated flags a breached case as ESCALATED when it first enters the
// breached tier without a fresh escalation. Later ticks leave the status alone
// so a manual reassignment back to UNDER_REVIEW sticks.
func (o *WorkflowOrchestrator) markEscalated(c *domain.Case, tierChange bool, now time.Time) error {
	if !tierChange || c.Status == domain.CaseStatusEscalated || !domain.CanTransition(c.Status, domain.CaseStatusEscalated) {
		return nil
	}
	return c.Transition(domain.CaseStatusEscalated, domain.SystemChange("Case marked escalated due to SLA breach", now))
}

func lastTier(c *domain.Case) SLATier {
	if c.LastSLATier == "" {
		return SLATierOnTrack
	}
	return SLATier(c.LastSLATier)
}

func isNoopEscalation(c *domain.Case, plan EscalationPlan) bool {
	return c.Status == domain.CaseStatusEscalated &&
		plan.TargetLevel == c.EscalationLevel &&
		plan.TargetAssignee == c.Assignee()
}

var tierEvents = map[SLATier]events.EventType{
	SLATierApproachingWarning: events.EventSLAWarning,
	SLATierWarning:            events.EventSLAWarning,
	SLATierApproachingBreach:  events.EventSLAUrgent,
	SLATierBreached:           events.EventSLABreach,
	SLATierCriticalBreach:     events.EventSLACriticalBreach,
}

func (o *WorkflowOrchestrator) notifyTier(ctx context.Context, c *domain.Case, st SLAStatus) {
	eventType, ok := tierEvents[st.Tier]
	if !ok {
		return
	}
	payload := map[string]any{
		"tier":               string(st.Tier),
		"risk":               string(st.Risk),
		"percentage_elapsed": st.PercentageElapsed,
		"target":             st.TargetAt,
	}
	o.publisher.publish(ctx, c, eventType, events.AudienceStaff, c.Assignee(), st.EvaluatedAt, payload)
}

func (o *WorkflowOrchestrator) processOverdue(ctx context.Context, id string) caseOutcome {
	var (
		escalation *EscalationResult
		overdue    time.Duration
	)
	saved, changed, err := o.mutator.Mutate(ctx, id, func(c *domain.Case) (bool, error) {
		escalation = nil
		now := o.now()
		overdue = c.OverdueBy(now)
		if !c.IsOpen() || overdue <= 0 {
			return false, nil
		}
		changed := false

		if overdue > overdueThreshold(c.Priority) && !c.EscalatedWithin(o.cfg.EscalationCooldown, now) {
			plan, err := o.resolver.Plan(c, TriggerSLABreach)
			if err != nil {
				return false, err
			}
			if !isNoopEscalation(c, plan) {
				result, err := o.resolver.Apply(c, plan, "Automated escalation due to SLA breach", domain.SystemChange("", now))
				if err != nil {
					return false, err
				}
				escalation = &result
				changed = true
			}
		}

		if overdue > significantDelay && !recentlyBumped(c, o.cfg.EscalationCooldown, now) {
			if next, ok := c.Priority.Bumped(); ok {
				c.ChangePriority(next, domain.SystemChange("Priority automatically increased due to significant delay", now))
				changed = true
			}
		}
		return changed, nil
	})
	if err != nil {
		return caseOutcome{err: err}
	}
	if saved == nil || overdue <= 0 || !saved.IsOpen() {
		return caseOutcome{}
	}

	if escalation != nil {
		o.resolver.PostEscalation(ctx, saved, *escalation)
	}
	o.publisher.publish(ctx, saved, events.EventCaseOverdue, events.AudienceStaff, saved.Assignee(), o.now(), map[string]any{
		"overdue_hours": int64(overdue / time.Hour),
		"priority":      string(saved.Priority),
	})
	return caseOutcome{changed: changed, escalated: escalation != nil}
}

// recentlyBumped reports whether an automated priority change happened inside window.
func recentlyBumped(c *domain.Case, window time.Duration, now time.Time) bool {
	for i := len(c.Activities) - 1; i >= 0; i-- {
		a := c.Activities[i]
		if a.Type == domain.ActivityPriorityChanged && a.Automated && a.CreatedAt.After(now.Add(-window)) {
			return true
		}
	}
	return false
}

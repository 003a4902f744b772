package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-service/internal/config"
	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/events"
	"github.com/spec-kit/grievance-service/internal/observability"
	"github.com/spec-kit/grievance-service/internal/repository"
	apperrors "github.com/spec-kit/grievance-service/pkg/util/errorutil"
)

// EscalationTrigger names why a case is being escalated.
type EscalationTrigger string

const (
	TriggerSLABreach          EscalationTrigger = "SLA_BREACH"
	TriggerCriticalPriority   EscalationTrigger = "CRITICAL_PRIORITY"
	TriggerCustomerComplaint  EscalationTrigger = "CUSTOMER_COMPLAINT"
	TriggerComplexity         EscalationTrigger = "COMPLEXITY"
	TriggerRepeatedEscalation EscalationTrigger = "REPEATED_ESCALATION"
	TriggerExternalPressure   EscalationTrigger = "EXTERNAL_PRESSURE"
)

var triggerIncrements = map[EscalationTrigger]int{
	TriggerSLABreach:          1,
	TriggerCriticalPriority:   0,
	TriggerCustomerComplaint:  1,
	TriggerComplexity:         1,
	TriggerRepeatedEscalation: 2,
	TriggerExternalPressure:   2,
}

var triggerDescriptions = map[EscalationTrigger]string{
	TriggerSLABreach:          "Case exceeded SLA deadline",
	TriggerCriticalPriority:   "Critical priority case",
	TriggerCustomerComplaint:  "Customer escalation request",
	TriggerComplexity:         "Case complexity requires higher expertise",
	TriggerRepeatedEscalation: "Multiple escalations",
	TriggerExternalPressure:   "External stakeholder pressure",
}

// Valid reports whether t is a known trigger.
func (t EscalationTrigger) Valid() bool {
	_, ok := triggerIncrements[t]
	return ok
}

// Description returns the human readable trigger description.
func (t EscalationTrigger) Description() string {
	return triggerDescriptions[t]
}

type EscalationUrgency string

const (
	UrgencyNormal   EscalationUrgency = "NORMAL"
	UrgencyHigh     EscalationUrgency = "HIGH"
	UrgencyCritical EscalationUrgency = "CRITICAL"
)

type NotificationScope string

const (
	ScopeOperational NotificationScope = "OPERATIONAL"
	ScopeManagement  NotificationScope = "MANAGEMENT"
	ScopeExecutive   NotificationScope = "EXECUTIVE"
)

type EscalationType string

const (
	EscalationStandard  EscalationType = "STANDARD"
	EscalationAutomatic EscalationType = "AUTOMATIC"
	EscalationSkipLevel EscalationType = "SKIP_LEVEL"
	EscalationEmergency EscalationType = "EMERGENCY"
)

const (
	minCriticalLevel      = 2
	repeatedEscalationMin = 3
	minShrunkWindow       = 4 * time.Hour
)

// EscalationPlan is the resolver's decision, computed without side effects.
type EscalationPlan struct {
	Trigger          EscalationTrigger
	PreviousLevel    int
	TargetLevel      int
	PreviousAssignee string
	TargetAssignee   string
	Type             EscalationType
	Urgency          EscalationUrgency
	Scope            NotificationScope
}

// EscalationResult describes an applied escalation.
type EscalationResult struct {
	EscalationPlan
	CaseID         string
	CaseNumber     string
	Reason         string
	PreviousTarget *time.Time
	NewTarget      *time.Time
	At             time.Time
}

// SLAShortened reports whether the escalation pulled the resolution target in.
func (r EscalationResult) SLAShortened() bool {
	return r.PreviousTarget != nil && r.NewTarget != nil && r.NewTarget.Before(*r.PreviousTarget)
}

// FollowUpScheduler arranges a later re-check of an escalated case.
type FollowUpScheduler interface {
	ScheduleFollowUp(caseID string)
}

// EscalationResolverDependencies wires the resolver.
type EscalationResolverDependencies struct {
	Routing    config.RoutingConfig
	Workload   repository.WorkloadTracker
	Dispatcher events.Dispatcher
	FollowUps  FollowUpScheduler
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// EscalationResolver decides and applies escalations along category hierarchies.
type EscalationResolver struct {
	routing   config.RoutingConfig
	workload  repository.WorkloadTracker
	followUps FollowUpScheduler
	publisher publisher
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewEscalationResolver builds the resolver.
func NewEscalationResolver(deps EscalationResolverDependencies) *EscalationResolver {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EscalationResolver{
		routing:   deps.Routing,
		workload:  deps.Workload,
		followUps: deps.FollowUps,
		publisher: publisher{dispatcher: deps.Dispatcher, logger: logger},
		logger:    logger,
		metrics:   deps.Metrics,
	}
}

// SetFollowUpScheduler binds the follow-up scheduler after construction.
func (r *EscalationResolver) SetFollowUpScheduler(s FollowUpScheduler) {
	r.followUps = s
}

// Hierarchy returns the escalation chain for a category.
func (r *EscalationResolver) Hierarchy(category domain.GrievanceCategory) []string {
	return r.routing.HierarchyFor(category)
}

// Plan computes the escalation for c under trigger without mutating c.
func (r *EscalationResolver) Plan(c *domain.Case, trigger EscalationTrigger) (EscalationPlan, error) {
	increment, ok := triggerIncrements[trigger]
	if !ok {
		return EscalationPlan{}, apperrors.NewValidationError("unknown escalation trigger", map[string]any{"trigger": trigger})
	}
	hierarchy := r.Hierarchy(c.Category)
	top := len(hierarchy) - 1
	current := c.EscalationLevel

	target := current + increment
	if target > top {
		target = top
	}
	if c.Priority == domain.CasePriorityCritical && target < minCriticalLevel {
		target = minCriticalLevel
	}
	if trigger == TriggerRepeatedEscalation && target < repeatedEscalationMin {
		target = repeatedEscalationMin
	}
	if target > top {
		target = top
	}
	if target < current {
		target = current
	}

	assignee := c.Assignee()
	if target < len(hierarchy) {
		assignee = hierarchy[target]
	}

	return EscalationPlan{
		Trigger:          trigger,
		PreviousLevel:    current,
		TargetLevel:      target,
		PreviousAssignee: c.Assignee(),
		TargetAssignee:   assignee,
		Type:             escalationType(trigger, current, target),
		Urgency:          escalationUrgency(c.Priority, trigger),
		Scope:            notificationScope(target, trigger),
	}, nil
}

// PlanTopLevel escalates straight to the top of the hierarchy and hands the
// case to a fixed top-level handler.
func (r *EscalationResolver) PlanTopLevel(c *domain.Case, handler string) EscalationPlan {
	hierarchy := r.Hierarchy(c.Category)
	target := len(hierarchy) - 1
	if c.EscalationLevel > target {
		target = c.EscalationLevel
	}
	if handler == "" {
		handler = config.DefaultTopLevelHandler
	}
	return EscalationPlan{
		Trigger:          TriggerSLABreach,
		PreviousLevel:    c.EscalationLevel,
		TargetLevel:      target,
		PreviousAssignee: c.Assignee(),
		TargetAssignee:   handler,
		Type:             escalationType(TriggerSLABreach, c.EscalationLevel, target),
		Urgency:          escalationUrgency(c.Priority, TriggerSLABreach),
		Scope:            ScopeExecutive,
	}
}

func escalationType(trigger EscalationTrigger, current, target int) EscalationType {
	switch {
	case trigger == TriggerCriticalPriority:
		return EscalationEmergency
	case target-current > 1:
		return EscalationSkipLevel
	case trigger == TriggerSLABreach:
		return EscalationAutomatic
	default:
		return EscalationStandard
	}
}

func escalationUrgency(priority domain.CasePriority, trigger EscalationTrigger) EscalationUrgency {
	switch {
	case priority == domain.CasePriorityCritical || trigger == TriggerCriticalPriority:
		return UrgencyCritical
	case priority == domain.CasePriorityHigh || trigger == TriggerSLABreach:
		return UrgencyHigh
	default:
		return UrgencyNormal
	}
}

func notificationScope(target int, trigger EscalationTrigger) NotificationScope {
	switch {
	case target >= 3 || trigger == TriggerExternalPressure:
		return ScopeExecutive
	case target >= 2:
		return ScopeManagement
	default:
		return ScopeOperational
	}
}

// Apply executes plan on the working copy c: level, assignee, status and a
// single escalation activity. CRITICAL urgency halves the remaining window
// (never below four hours) but never moves the target later.
func (r *EscalationResolver) Apply(c *domain.Case, plan EscalationPlan, reason string, change domain.Change) (EscalationResult, error) {
	if reason == "" {
		reason = plan.Trigger.Description()
	}
	result := EscalationResult{
		EscalationPlan: plan,
		CaseID:         c.ID,
		CaseNumber:     c.CaseNumber,
		Reason:         reason,
		PreviousTarget: cloneTimePtr(c.ResolutionTargetAt),
		At:             change.At,
	}

	if plan.Urgency == UrgencyCritical && c.ResolutionTargetAt != nil {
		remaining := c.ResolutionTargetAt.Sub(change.At)
		window := remaining / 2
		if window < minShrunkWindow {
			window = minShrunkWindow
		}
		shrunk := change.At.Add(window)
		if shrunk.Before(*c.ResolutionTargetAt) {
			c.ResolutionTargetAt = &shrunk
		}
	}
	result.NewTarget = cloneTimePtr(c.ResolutionTargetAt)

	if change.Description == "" {
		change.Description = fmt.Sprintf("Case escalated from level %d to level %d. Reason: %s",
			plan.PreviousLevel, plan.TargetLevel, reason)
	}
	if err := c.Escalate(plan.TargetLevel, plan.TargetAssignee, reason, change); err != nil {
		return EscalationResult{}, apperrors.NewValidationError(err.Error(), map[string]any{"status": c.Status})
	}
	return result, nil
}

// PostEscalation runs the best-effort follow-ups once the escalation is durable.
func (r *EscalationResolver) PostEscalation(ctx context.Context, c *domain.Case, result EscalationResult) {
	payload := map[string]any{
		"previous_level":  result.PreviousLevel,
		"new_level":       result.TargetLevel,
		"escalation_type": string(result.Type),
		"urgency":         string(result.Urgency),
		"scope":           string(result.Scope),
		"reason":          result.Reason,
	}
	r.publisher.publish(ctx, c, events.EventEscalationAssigned, events.AudienceStaff, result.TargetAssignee, result.At, payload)
	if result.PreviousAssignee != "" && result.PreviousAssignee != result.TargetAssignee {
		r.publisher.publish(ctx, c, events.EventEscalationHandoff, events.AudienceStaff, result.PreviousAssignee, result.At, payload)
	}
	r.publisher.publish(ctx, c, events.EventEscalationUpdate, events.AudienceComplainant, complainantRecipient(c), result.At, payload)
	if result.Scope != ScopeOperational {
		r.publisher.publish(ctx, c, events.EventManagementEscalation, events.AudienceManagement, r.managementRecipient(c, result.Scope), result.At, payload)
	}

	if r.workload != nil && result.PreviousAssignee != result.TargetAssignee {
		if result.PreviousAssignee != "" {
			if err := r.workload.Decrement(ctx, result.PreviousAssignee); err != nil {
				r.logger.Warn("workload decrement failed", zap.String("staff_id", result.PreviousAssignee), zap.Error(err))
			}
		}
		if err := r.workload.Increment(ctx, result.TargetAssignee); err != nil {
			r.logger.Warn("workload increment failed", zap.String("staff_id", result.TargetAssignee), zap.Error(err))
		}
	}

	if r.followUps != nil {
		r.followUps.ScheduleFollowUp(c.ID)
	}

	r.metrics.RecordEscalation(string(result.Trigger), string(result.Urgency))
	r.logger.Info("case escalated",
		zap.String("case_id", c.ID),
		zap.String("case_number", c.CaseNumber),
		zap.String("trigger", string(result.Trigger)),
		zap.Int("previous_level", result.PreviousLevel),
		zap.Int("new_level", result.TargetLevel),
		zap.String("staff_id", result.TargetAssignee),
		zap.String("category", string(c.Category)),
		zap.String("priority", string(c.Priority)))
}

func (r *EscalationResolver) managementRecipient(c *domain.Case, scope NotificationScope) string {
	hierarchy := r.Hierarchy(c.Category)
	if scope == ScopeExecutive || len(hierarchy) <= minCriticalLevel {
		return hierarchy[len(hierarchy)-1]
	}
	return hierarchy[minCriticalLevel]
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/grievance-service/internal/config"
	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/events"
	"github.com/spec-kit/grievance-service/internal/repository"
	apperrors "github.com/spec-kit/grievance-service/pkg/util/errorutil"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, e events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}

func (d *recordingDispatcher) byType(t events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type recordingFollowUps struct {
	ids []string
}

func (r *recordingFollowUps) ScheduleFollowUp(id string) { r.ids = append(r.ids, id) }

func escalationCase(category domain.GrievanceCategory, priority domain.CasePriority, level int) *domain.Case {
	assignee := "integrity.officer@dswd.gov.ph"
	return &domain.Case{
		ID:                 "case-1",
		CaseNumber:         "GRV-20240301-00000001",
		ComplainantID:      "citizen-1",
		ComplainantContact: "citizen@example.com",
		Category:           category,
		Priority:           priority,
		Status:             domain.CaseStatusUnderReview,
		EscalationLevel:    level,
		AssigneeID:         &assignee,
		SubmittedAt:        epoch,
	}
}

func newResolver(d events.Dispatcher, w repository.WorkloadTracker) *EscalationResolver {
	return NewEscalationResolver(EscalationResolverDependencies{
		Routing:    config.DefaultRoutingConfig(),
		Workload:   w,
		Dispatcher: d,
	})
}

func TestPlanCriticalBreach(t *testing.T) {
	r := newResolver(nil, nil)
	c := escalationCase(domain.CategoryCorruption, domain.CasePriorityCritical, 1)

	plan, err := r.Plan(c, TriggerSLABreach)
	require.NoError(t, err)

	assert.Equal(t, 1, plan.PreviousLevel)
	assert.Equal(t, 2, plan.TargetLevel)
	assert.Equal(t, "regional.director@dswd.gov.ph", plan.TargetAssignee)
	assert.Equal(t, EscalationAutomatic, plan.Type)
	assert.Equal(t, UrgencyCritical, plan.Urgency)
	assert.Equal(t, ScopeManagement, plan.Scope)
}

func TestPlanRules(t *testing.T) {
	tests := []struct {
		name      string
		category  domain.GrievanceCategory
		priority  domain.CasePriority
		level     int
		trigger   EscalationTrigger
		wantLevel int
		wantType  EscalationType
		wantUrg   EscalationUrgency
		wantScope NotificationScope
	}{
		{"complexity one step", domain.CategoryOther, domain.CasePriorityMedium, 0, TriggerComplexity, 1, EscalationStandard, UrgencyNormal, ScopeOperational},
		{"critical priority floor", domain.CategoryPaymentIssue, domain.CasePriorityCritical, 0, TriggerCriticalPriority, 2, EscalationEmergency, UrgencyCritical, ScopeManagement},
		{"repeated jumps to three", domain.CategorySystemError, domain.CasePriorityLow, 0, TriggerRepeatedEscalation, 3, EscalationSkipLevel, UrgencyNormal, ScopeExecutive},
		{"external pressure executive", domain.CategoryOther, domain.CasePriorityHigh, 0, TriggerExternalPressure, 2, EscalationSkipLevel, UrgencyHigh, ScopeExecutive},
		{"capped at top", domain.CategoryCorruption, domain.CasePriorityMedium, 3, TriggerSLABreach, 3, EscalationAutomatic, UrgencyHigh, ScopeExecutive},
	}
	r := newResolver(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := escalationCase(tt.category, tt.priority, tt.level)

			plan, err := r.Plan(c, tt.trigger)
			require.NoError(t, err)

			assert.Equal(t, tt.wantLevel, plan.TargetLevel)
			assert.Equal(t, r.Hierarchy(tt.category)[tt.wantLevel], plan.TargetAssignee)
			assert.Equal(t, tt.wantType, plan.Type)
			assert.Equal(t, tt.wantUrg, plan.Urgency)
			assert.Equal(t, tt.wantScope, plan.Scope)
		})
	}
}

func TestPlanUnknownTrigger(t *testing.T) {
	_, err := newResolver(nil, nil).Plan(escalationCase(domain.CategoryOther, domain.CasePriorityLow, 0), "BORED")

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, apperrors.CodeValidation, domainErr.Code)
}

func TestPlanTopLevel(t *testing.T) {
	r := newResolver(nil, nil)
	c := escalationCase(domain.CategoryPaymentIssue, domain.CasePriorityHigh, 1)

	plan := r.PlanTopLevel(c, "")

	assert.Equal(t, 3, plan.TargetLevel)
	assert.Equal(t, config.DefaultTopLevelHandler, plan.TargetAssignee)
	assert.Equal(t, ScopeExecutive, plan.Scope)
}

func TestApplyShrinksWindowForCriticalUrgency(t *testing.T) {
	tests := []struct {
		name      string
		remaining time.Duration
		want      time.Duration
	}{
		{"halved", 10 * time.Hour, 5 * time.Hour},
		{"floor", 6 * time.Hour, 4 * time.Hour},
		{"never later", 2 * time.Hour, 2 * time.Hour},
	}
	r := newResolver(nil, nil)
	now := epoch.Add(time.Hour)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := escalationCase(domain.CategoryCorruption, domain.CasePriorityCritical, 0)
			target := now.Add(tt.remaining)
			c.ResolutionTargetAt = &target
			plan, err := r.Plan(c, TriggerSLABreach)
			require.NoError(t, err)

			result, err := r.Apply(c, plan, "", domain.SystemChange("", now))
			require.NoError(t, err)

			assert.Equal(t, now.Add(tt.want), *c.ResolutionTargetAt)
			assert.Equal(t, tt.want < tt.remaining, result.SLAShortened())
			assert.Equal(t, domain.CaseStatusEscalated, c.Status)
			assert.Equal(t, TriggerSLABreach.Description(), c.EscalationReason)
			require.Len(t, c.Activities, 1)
			assert.Equal(t, "Case escalated from level 0 to level 2. Reason: Case exceeded SLA deadline", c.Activities[0].Description)
		})
	}
}

func TestApplyRejectsTerminalCase(t *testing.T) {
	r := newResolver(nil, nil)
	c := escalationCase(domain.CategoryOther, domain.CasePriorityMedium, 0)
	c.Status = domain.CaseStatusResolved
	plan, err := r.Plan(c, TriggerComplexity)
	require.NoError(t, err)

	_, err = r.Apply(c, plan, "needs a lawyer", domain.SystemChange("", epoch))

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, apperrors.CodeValidation, domainErr.Code)
}

func TestPostEscalationNotifiesAndMovesWorkload(t *testing.T) {
	ctx := context.Background()
	dispatcher := &recordingDispatcher{}
	workload := repository.NewMemoryWorkloadTracker()
	require.NoError(t, workload.Increment(ctx, "integrity.officer@dswd.gov.ph"))
	followUps := &recordingFollowUps{}
	r := newResolver(dispatcher, workload)
	r.SetFollowUpScheduler(followUps)

	c := escalationCase(domain.CategoryCorruption, domain.CasePriorityCritical, 1)
	plan, err := r.Plan(c, TriggerSLABreach)
	require.NoError(t, err)
	result, err := r.Apply(c, plan, "", domain.SystemChange("", epoch))
	require.NoError(t, err)

	r.PostEscalation(ctx, c, result)

	assert.Equal(t, []events.EventType{
		events.EventEscalationAssigned,
		events.EventEscalationHandoff,
		events.EventEscalationUpdate,
		events.EventManagementEscalation,
	}, dispatcher.types())
	assert.Equal(t, "citizen@example.com", dispatcher.byType(events.EventEscalationUpdate)[0].Recipient)
	assert.Equal(t, "regional.director@dswd.gov.ph", dispatcher.byType(events.EventManagementEscalation)[0].Recipient)

	previous, _ := workload.WorkloadOf(ctx, "integrity.officer@dswd.gov.ph")
	target, _ := workload.WorkloadOf(ctx, "regional.director@dswd.gov.ph")
	assert.Equal(t, 0, previous)
	assert.Equal(t, 1, target)
	assert.Equal(t, []string{"case-1"}, followUps.ids)
}

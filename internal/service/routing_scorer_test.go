package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/grievance-service/internal/config"
	"github.com/spec-kit/grievance-service/internal/domain"
)

type fakeDirectory struct {
	ids         []string
	workloads   map[string]int
	expertise   map[string]float64
	performance map[string]float64
	err         error
}

func (f *fakeDirectory) Candidates(context.Context) ([]string, error) {
	return f.ids, f.err
}

func (f *fakeDirectory) WorkloadOf(_ context.Context, id string) (int, error) {
	return f.workloads[id], nil
}

func (f *fakeDirectory) Expertise(_ context.Context, id string, _ domain.GrievanceCategory) (float64, bool) {
	v, ok := f.expertise[id]
	return v, ok
}

func (f *fakeDirectory) Performance(_ context.Context, id string) (float64, bool) {
	v, ok := f.performance[id]
	return v, ok
}

func newScorer(t *testing.T, dir StaffDirectory) *RoutingScorer {
	t.Helper()
	scorer, err := NewRoutingScorer(RoutingScorerDependencies{Directory: dir, Routing: config.DefaultRoutingConfig()})
	require.NoError(t, err)
	return scorer
}

func TestRouteWorkloadOutweighsExpertise(t *testing.T) {
	dir := &fakeDirectory{
		ids:       []string{"a", "b"},
		workloads: map[string]int{"a": 10, "b": 1},
		expertise: map[string]float64{"a": 0.9, "b": 0.6},
	}
	c := &domain.Case{Category: domain.CategoryPaymentIssue, Priority: domain.CasePriorityMedium}

	decision := newScorer(t, dir).Route(context.Background(), c)

	assert.Equal(t, RoutingMethodScored, decision.Method)
	assert.Equal(t, "b", decision.Assignee)
	require.Len(t, decision.Scores, 2)
	assert.InDelta(t, 0.45*0.85, decision.Scores[0].Score, 1e-9)
	assert.InDelta(t, 0.54*0.85, decision.Scores[1].Score, 1e-9)
}

func TestRouteTieKeepsFirstCandidate(t *testing.T) {
	dir := &fakeDirectory{ids: []string{"first", "second"}}
	c := &domain.Case{Category: domain.CategoryOther, Priority: domain.CasePriorityLow}

	decision := newScorer(t, dir).Route(context.Background(), c)

	assert.Equal(t, "first", decision.Assignee)
}

func TestRouteCriticalBoostsStrongExperts(t *testing.T) {
	dir := &fakeDirectory{
		ids:       []string{"expert"},
		expertise: map[string]float64{"expert": 0.9},
	}
	c := &domain.Case{Category: domain.CategoryCorruption, Priority: domain.CasePriorityCritical}

	decision := newScorer(t, dir).Route(context.Background(), c)

	assert.InDelta(t, 1.0, decision.Scores[0].Expertise, 1e-9)
}

func TestRouteFallsBackToDefaultAssignee(t *testing.T) {
	tests := map[string]*fakeDirectory{
		"directory error": {err: errors.New("db down")},
		"no candidates":   {},
	}
	for name, dir := range tests {
		t.Run(name, func(t *testing.T) {
			c := &domain.Case{Category: domain.CategoryPaymentIssue, Priority: domain.CasePriorityMedium}

			decision := newScorer(t, dir).Route(context.Background(), c)

			assert.Equal(t, RoutingMethodFallback, decision.Method)
			assert.Equal(t, "payment.specialist@dswd.gov.ph", decision.Assignee)
			assert.Error(t, decision.FallbackReason)
		})
	}
}

func TestDefaultAssignee(t *testing.T) {
	scorer := newScorer(t, nil)

	assert.Equal(t, "service.specialist@dswd.gov.ph", scorer.DefaultAssignee(domain.CategoryServiceDelivery, domain.CasePriorityHigh))
	assert.Equal(t, "operations.manager@dswd.gov.ph", scorer.DefaultAssignee(domain.CategoryServiceDelivery, domain.CasePriorityCritical))
	assert.Equal(t, "legal.counsel@dswd.gov.ph", scorer.DefaultAssignee(domain.CategoryCorruption, domain.CasePriorityCritical))
	assert.Equal(t, "general.officer@dswd.gov.ph", scorer.DefaultAssignee("PARKING", domain.CasePriorityLow))
}

func TestDetectPriorityOnlyRaises(t *testing.T) {
	scorer := newScorer(t, nil)

	c := &domain.Case{Subject: "URGENT: payment missing", Priority: domain.CasePriorityMedium}
	p, ok := scorer.DetectPriority(c)
	assert.True(t, ok)
	assert.Equal(t, domain.CasePriorityCritical, p)

	c = &domain.Case{Subject: "minor typo on form", Priority: domain.CasePriorityHigh}
	p, ok = scorer.DetectPriority(c)
	assert.False(t, ok)
	assert.Equal(t, domain.CasePriorityHigh, p)
}

func TestDetectCategory(t *testing.T) {
	scorer := newScorer(t, nil)

	c := &domain.Case{Subject: "Bribery at the office", Description: "An officer asked for a kickback"}
	category, ok := scorer.DetectCategory(c)
	assert.True(t, ok)
	assert.Equal(t, domain.CategoryCorruption, category)

	_, ok = scorer.DetectCategory(&domain.Case{Subject: "hello"})
	assert.False(t, ok)
}

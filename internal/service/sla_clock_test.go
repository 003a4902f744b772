package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/grievance-service/internal/domain"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func slaCase(priority domain.CasePriority) *domain.Case {
	return &domain.Case{
		ID:          "case-1",
		CaseNumber:  "GRV-20240301-00000001",
		Priority:    priority,
		Status:      domain.CaseStatusUnderReview,
		SubmittedAt: epoch,
	}
}

func TestSLADurations(t *testing.T) {
	clock := NewSLAClock(&FixedClock{At: epoch})

	assert.Equal(t, 24*time.Hour, clock.DurationFor(domain.CasePriorityCritical))
	assert.Equal(t, 72*time.Hour, clock.DurationFor(domain.CasePriorityHigh))
	assert.Equal(t, 168*time.Hour, clock.DurationFor(domain.CasePriorityMedium))
	assert.Equal(t, 336*time.Hour, clock.DurationFor(domain.CasePriorityLow))
	assert.Equal(t, 168*time.Hour, clock.DurationFor("UNKNOWN"))
}

func TestEnsureTargetKeepsExisting(t *testing.T) {
	clock := NewSLAClock(nil)
	c := slaCase(domain.CasePriorityHigh)

	assert.True(t, clock.EnsureTarget(c))
	assert.Equal(t, epoch.Add(72*time.Hour), *c.ResolutionTargetAt)

	c.Priority = domain.CasePriorityCritical
	assert.False(t, clock.EnsureTarget(c))
	assert.Equal(t, epoch.Add(72*time.Hour), *c.ResolutionTargetAt)
}

func TestEvaluateTiers(t *testing.T) {
	clock := NewSLAClock(nil)
	tests := []struct {
		name     string
		elapsed  time.Duration
		wantTier SLATier
		wantRisk RiskLevel
		wantPct  float64
		summary  string
		wantLate bool
	}{
		{"early", 50 * time.Hour, SLATierOnTrack, RiskLow, 0.2976, "(29.8% elapsed, 4 days remaining)", false},
		{"past half", 100 * time.Hour, SLATierApproachingWarning, RiskLow, 0.5952, "", false},
		{"warning", 130 * time.Hour, SLATierWarning, RiskMedium, 0.7738, "", false},
		{"near breach", 155 * time.Hour, SLATierApproachingBreach, RiskHigh, 0.9226, "(92.3% elapsed, 13 hours remaining)", false},
		{"breached", 180 * time.Hour, SLATierBreached, RiskHigh, 1.0714, "", true},
		{"critical breach", 300 * time.Hour, SLATierCriticalBreach, RiskCritical, 1.7857, "(178.6% elapsed, OVERDUE by 5 days remaining)", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := slaCase(domain.CasePriorityMedium)
			st := clock.Evaluate(c, epoch.Add(tt.elapsed))

			assert.Equal(t, tt.wantTier, st.Tier)
			assert.Equal(t, tt.wantRisk, st.Risk)
			assert.InDelta(t, tt.wantPct, st.PercentageElapsed, 0.001)
			assert.Equal(t, tt.wantLate, st.Overdue)
			assert.Equal(t, 0.7, st.WarningThreshold)
			if tt.summary != "" {
				assert.Equal(t, tt.summary, st.Summary())
			}
		})
	}
}

func TestEvaluateUsesStoredTarget(t *testing.T) {
	clock := NewSLAClock(nil)
	c := slaCase(domain.CasePriorityMedium)
	target := epoch.Add(10 * time.Hour)
	c.ResolutionTargetAt = &target

	st := clock.Evaluate(c, epoch.Add(12*time.Hour))

	assert.Equal(t, target, st.TargetAt)
	assert.Equal(t, SLATierBreached, st.Tier)
	assert.Equal(t, -2*time.Hour, st.Remaining)
}

func TestRiskWeightedByPriority(t *testing.T) {
	clock := NewSLAClock(nil)
	critical := slaCase(domain.CasePriorityCritical)
	low := slaCase(domain.CasePriorityLow)

	// 0.65 of the window: 0.975 for CRITICAL, 0.52 for LOW.
	assert.Equal(t, RiskHigh, clock.Evaluate(critical, epoch.Add(time.Duration(0.65*24*float64(time.Hour)))).Risk)
	assert.Equal(t, RiskLow, clock.Evaluate(low, epoch.Add(time.Duration(0.65*336*float64(time.Hour)))).Risk)
}

func TestPercentageElapsedNeverDecreases(t *testing.T) {
	clock := NewSLAClock(&FixedClock{At: epoch})
	for _, priority := range []domain.CasePriority{
		domain.CasePriorityCritical,
		domain.CasePriorityHigh,
		domain.CasePriorityMedium,
		domain.CasePriorityLow,
	} {
		t.Run(string(priority), func(t *testing.T) {
			c := slaCase(priority)
			clock.EnsureTarget(c)
			horizon := 2 * clock.DurationFor(priority)

			previous := clock.Evaluate(c, epoch)
			for at := epoch.Add(30 * time.Minute); !at.After(epoch.Add(horizon)); at = at.Add(30 * time.Minute) {
				st := clock.Evaluate(c, at)
				if st.PercentageElapsed < previous.PercentageElapsed {
					t.Fatalf("percentage dropped from %.4f to %.4f at %s", previous.PercentageElapsed, st.PercentageElapsed, at)
				}
				assert.Equal(t, *c.ResolutionTargetAt, st.TargetAt)
				previous = st
			}
			assert.Greater(t, previous.PercentageElapsed, 1.5)
		})
	}
}

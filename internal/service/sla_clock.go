package service

import (
	"fmt"
	"time"

	"github.com/spec-kit/grievance-service/internal/domain"
)

// SLATier classifies how close a case is to its resolution target.
type SLATier string

const (
	SLATierOnTrack            SLATier = "ON_TRACK"
	SLATierApproachingWarning SLATier = "APPROACHING_WARNING"
	SLATierWarning            SLATier = "WARNING"
	SLATierApproachingBreach  SLATier = "APPROACHING_BREACH"
	SLATierBreached           SLATier = "BREACHED"
	SLATierCriticalBreach     SLATier = "CRITICAL_BREACH"
)

// RiskLevel is the priority-weighted SLA risk bucket.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

var slaDurations = map[domain.CasePriority]time.Duration{
	domain.CasePriorityCritical: 24 * time.Hour,
	domain.CasePriorityHigh:     72 * time.Hour,
	domain.CasePriorityMedium:   168 * time.Hour,
	domain.CasePriorityLow:      336 * time.Hour,
}

// Advisory only; tiers use the fixed 0.5/0.7/0.9 cut-offs.
var warningThresholds = map[domain.CasePriority]float64{
	domain.CasePriorityCritical: 0.5,
	domain.CasePriorityHigh:     0.6,
	domain.CasePriorityMedium:   0.7,
	domain.CasePriorityLow:      0.8,
}

var riskMultipliers = map[domain.CasePriority]float64{
	domain.CasePriorityCritical: 1.5,
	domain.CasePriorityHigh:     1.2,
	domain.CasePriorityMedium:   1.0,
	domain.CasePriorityLow:      0.8,
}

// SLAStatus is the computed SLA position of a case at an instant.
type SLAStatus struct {
	CaseID            string
	CaseNumber        string
	Priority          domain.CasePriority
	SubmittedAt       time.Time
	TargetAt          time.Time
	EvaluatedAt       time.Time
	Elapsed           time.Duration
	Remaining         time.Duration
	PercentageElapsed float64
	Tier              SLATier
	Risk              RiskLevel
	WarningThreshold  float64
	Overdue           bool
}

// SLAClock computes SLA position for cases. It is stateless apart from the
// clock used by callers that do not pass an explicit instant.
type SLAClock struct {
	clock Clock
}

// NewSLAClock builds the SLA clock.
func NewSLAClock(clock Clock) *SLAClock {
	if clock == nil {
		clock = SystemClock()
	}
	return &SLAClock{clock: clock}
}

// Now returns the clock's current instant.
func (s *SLAClock) Now() time.Time {
	return s.clock.Now()
}

// DurationFor returns the resolution window for a priority. Unknown priorities
// use the MEDIUM window.
func (s *SLAClock) DurationFor(priority domain.CasePriority) time.Duration {
	if d, ok := slaDurations[priority]; ok {
		return d
	}
	return slaDurations[domain.CasePriorityMedium]
}

// EnsureTarget sets the resolution target when it is missing and reports
// whether it did. An existing target is never touched.
func (s *SLAClock) EnsureTarget(c *domain.Case) bool {
	if c.ResolutionTargetAt != nil {
		return false
	}
	target := c.SubmittedAt.Add(s.DurationFor(c.Priority))
	c.ResolutionTargetAt = &target
	return true
}

// Evaluate computes the SLA status of c at now without mutating it. A case
// without a target is evaluated against the target EnsureTarget would set.
func (s *SLAClock) Evaluate(c *domain.Case, now time.Time) SLAStatus {
	target := c.SubmittedAt.Add(s.DurationFor(c.Priority))
	if c.ResolutionTargetAt != nil {
		target = *c.ResolutionTargetAt
	}

	elapsed := now.Sub(c.SubmittedAt)
	remaining := target.Sub(now)
	window := target.Sub(c.SubmittedAt)
	if window <= 0 {
		window = time.Minute
	}
	pct := float64(elapsed) / float64(window)

	return SLAStatus{
		CaseID:            c.ID,
		CaseNumber:        c.CaseNumber,
		Priority:          c.Priority,
		SubmittedAt:       c.SubmittedAt,
		TargetAt:          target,
		EvaluatedAt:       now,
		Elapsed:           elapsed,
		Remaining:         remaining,
		PercentageElapsed: pct,
		Tier:              tierFor(pct, remaining),
		Risk:              riskFor(pct, c.Priority),
		WarningThreshold:  warningThresholds[c.Priority],
		Overdue:           remaining < 0,
	}
}

func tierFor(pct float64, remaining time.Duration) SLATier {
	switch {
	case remaining < 0 && pct > 1.5:
		return SLATierCriticalBreach
	case remaining < 0:
		return SLATierBreached
	case pct > 0.9:
		return SLATierApproachingBreach
	case pct > 0.7:
		return SLATierWarning
	case pct > 0.5:
		return SLATierApproachingWarning
	default:
		return SLATierOnTrack
	}
}

func riskFor(pct float64, priority domain.CasePriority) RiskLevel {
	multiplier, ok := riskMultipliers[priority]
	if !ok {
		multiplier = 1.0
	}
	score := pct * multiplier
	switch {
	case score > 1.2:
		return RiskCritical
	case score > 0.9:
		return RiskHigh
	case score > 0.7:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Summary renders the elapsed/remaining suffix recorded on SLA activities.
func (st SLAStatus) Summary() string {
	return fmt.Sprintf("(%.1f%% elapsed, %s remaining)", st.PercentageElapsed*100, formatRemaining(st.Remaining))
}

func formatRemaining(d time.Duration) string {
	if d < 0 {
		return "OVERDUE by " + formatPositive(-d)
	}
	return formatPositive(d)
}

func formatPositive(d time.Duration) string {
	hours := int64(d / time.Hour)
	if hours < 24 {
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%d days", hours/24)
}

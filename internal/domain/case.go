package domain

import "time"

// CaseStatus enumerates lifecycle states for grievance cases.
type CaseStatus string

const (
	CaseStatusSubmitted       CaseStatus = "SUBMITTED"
	CaseStatusAcknowledged    CaseStatus = "ACKNOWLEDGED"
	CaseStatusUnderReview     CaseStatus = "UNDER_REVIEW"
	CaseStatusInvestigating   CaseStatus = "INVESTIGATING"
	CaseStatusPendingResponse CaseStatus = "PENDING_RESPONSE"
	CaseStatusEscalated       CaseStatus = "ESCALATED"
	CaseStatusResolved        CaseStatus = "RESOLVED"
	CaseStatusClosed          CaseStatus = "CLOSED"
	CaseStatusRejected        CaseStatus = "REJECTED"
	CaseStatusCancelled       CaseStatus = "CANCELLED"
)

// OpenStatuses lists the statuses swept by the workflow engine.
var OpenStatuses = []CaseStatus{
	CaseStatusSubmitted,
	CaseStatusAcknowledged,
	CaseStatusUnderReview,
	CaseStatusInvestigating,
	CaseStatusPendingResponse,
	CaseStatusEscalated,
}

// IsOpen reports whether the status still counts against an SLA.
func (s CaseStatus) IsOpen() bool {
	for _, open := range OpenStatuses {
		if s == open {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s CaseStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CasePriority enumerates SLA urgency, ordered LOW < MEDIUM < HIGH < CRITICAL.
type CasePriority string

const (
	CasePriorityLow      CasePriority = "LOW"
	CasePriorityMedium   CasePriority = "MEDIUM"
	CasePriorityHigh     CasePriority = "HIGH"
	CasePriorityCritical CasePriority = "CRITICAL"
)

// Priorities lists every priority in ascending order.
var Priorities = []CasePriority{
	CasePriorityLow,
	CasePriorityMedium,
	CasePriorityHigh,
	CasePriorityCritical,
}

// Rank returns the ordinal of the priority; unknown priorities rank -1.
func (p CasePriority) Rank() int {
	for i, candidate := range Priorities {
		if candidate == p {
			return i
		}
	}
	return -1
}

// Valid reports whether p is a known priority.
func (p CasePriority) Valid() bool {
	return p.Rank() >= 0
}

// Outranks reports whether p is strictly more urgent than other.
func (p CasePriority) Outranks(other CasePriority) bool {
	return p.Rank() > other.Rank()
}

// Bumped returns the next priority for overdue cases. HIGH and CRITICAL are ceilings.
func (p CasePriority) Bumped() (CasePriority, bool) {
	switch p {
	case CasePriorityLow:
		return CasePriorityMedium, true
	case CasePriorityMedium:
		return CasePriorityHigh, true
	default:
		return p, false
	}
}

// GrievanceCategory classifies the subject of a grievance.
type GrievanceCategory string

const (
	CategoryServiceDelivery    GrievanceCategory = "SERVICE_DELIVERY"
	CategoryPaymentIssue       GrievanceCategory = "PAYMENT_ISSUE"
	CategoryEligibilityDispute GrievanceCategory = "ELIGIBILITY_DISPUTE"
	CategoryStaffConduct       GrievanceCategory = "STAFF_CONDUCT"
	CategorySystemError        GrievanceCategory = "SYSTEM_ERROR"
	CategoryDataPrivacy        GrievanceCategory = "DATA_PRIVACY"
	CategoryDiscrimination     GrievanceCategory = "DISCRIMINATION"
	CategoryCorruption         GrievanceCategory = "CORRUPTION"
	CategoryAccessIssue        GrievanceCategory = "ACCESS_ISSUE"
	CategoryQualityConcern     GrievanceCategory = "QUALITY_CONCERN"
	CategoryOther              GrievanceCategory = "OTHER"
)

// Categories lists every category in declaration order.
var Categories = []GrievanceCategory{
	CategoryServiceDelivery,
	CategoryPaymentIssue,
	CategoryEligibilityDispute,
	CategoryStaffConduct,
	CategorySystemError,
	CategoryDataPrivacy,
	CategoryDiscrimination,
	CategoryCorruption,
	CategoryAccessIssue,
	CategoryQualityConcern,
	CategoryOther,
}

// Valid reports whether c is a known category.
func (c GrievanceCategory) Valid() bool {
	for _, candidate := range Categories {
		if candidate == c {
			return true
		}
	}
	return false
}

// Satisfaction is the complainant's post-resolution feedback label.
type Satisfaction string

const (
	SatisfactionVerySatisfied    Satisfaction = "VERY_SATISFIED"
	SatisfactionSatisfied        Satisfaction = "SATISFIED"
	SatisfactionNeutral          Satisfaction = "NEUTRAL"
	SatisfactionDissatisfied     Satisfaction = "DISSATISFIED"
	SatisfactionVeryDissatisfied Satisfaction = "VERY_DISSATISFIED"
)

var satisfactionScores = map[Satisfaction]int{
	SatisfactionVerySatisfied:    5,
	SatisfactionSatisfied:        4,
	SatisfactionNeutral:          3,
	SatisfactionDissatisfied:     2,
	SatisfactionVeryDissatisfied: 1,
}

// Score maps the label onto 1..5; unknown labels score as neutral.
func (s Satisfaction) Score() int {
	if score, ok := satisfactionScores[s]; ok {
		return score
	}
	return 3
}

// Valid reports whether s is a known label.
func (s Satisfaction) Valid() bool {
	_, ok := satisfactionScores[s]
	return ok
}

// Positive reports whether the label counts towards the satisfaction rate.
func (s Satisfaction) Positive() bool {
	return s == SatisfactionSatisfied || s == SatisfactionVerySatisfied
}

// SystemActor is the actor recorded for automated transitions.
const SystemActor = "SYSTEM"

// Case is the aggregate for a grievance and its append-only activity log.
type Case struct {
	ID                 string
	CaseNumber         string
	ComplainantID      string
	ComplainantContact string
	Subject            string
	Description        string
	Category           GrievanceCategory
	Priority           CasePriority
	Status             CaseStatus
	EscalationLevel    int
	AssigneeID         *string
	AssignedAt         *time.Time
	SubmittedAt        time.Time
	ResolutionTargetAt *time.Time
	ResolvedAt         *time.Time
	EscalatedAt        *time.Time
	EscalationReason   string
	ResolutionSummary  string
	LastSLATier        string
	Satisfaction       *Satisfaction
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Activities         []Activity
}

// IsOpen reports whether the case still counts against its SLA.
func (c *Case) IsOpen() bool {
	return c.Status.IsOpen()
}

// Assignee returns the assignee or an empty string.
func (c *Case) Assignee() string {
	if c.AssigneeID == nil {
		return ""
	}
	return *c.AssigneeID
}

// OverdueBy returns how far past the resolution target the case is at now.
// It returns zero when the case has no target or is not overdue.
func (c *Case) OverdueBy(now time.Time) time.Duration {
	if c.ResolutionTargetAt == nil || !now.After(*c.ResolutionTargetAt) {
		return 0
	}
	return now.Sub(*c.ResolutionTargetAt)
}

// EscalatedWithin reports whether the case was escalated inside the window ending at now.
func (c *Case) EscalatedWithin(window time.Duration, now time.Time) bool {
	return c.EscalatedAt != nil && c.EscalatedAt.After(now.Add(-window))
}

// Clone returns a deep copy so store records and working copies never share memory.
func (c *Case) Clone() *Case {
	if c == nil {
		return nil
	}
	out := *c
	out.AssigneeID = cloneString(c.AssigneeID)
	out.AssignedAt = cloneTime(c.AssignedAt)
	out.ResolutionTargetAt = cloneTime(c.ResolutionTargetAt)
	out.ResolvedAt = cloneTime(c.ResolvedAt)
	out.EscalatedAt = cloneTime(c.EscalatedAt)
	if c.Satisfaction != nil {
		s := *c.Satisfaction
		out.Satisfaction = &s
	}
	out.Activities = make([]Activity, len(c.Activities))
	for i := range c.Activities {
		out.Activities[i] = c.Activities[i].clone()
	}
	return &out
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := *v
	return &t
}

package domain

import "time"

// ActivityType captures what an activity entry records.
type ActivityType string

const (
	ActivityCaseCreated       ActivityType = "CASE_CREATED"
	ActivityCaseAssigned      ActivityType = "CASE_ASSIGNED"
	ActivityCaseReassigned    ActivityType = "CASE_REASSIGNED"
	ActivityStatusChanged     ActivityType = "STATUS_CHANGED"
	ActivityPriorityChanged   ActivityType = "PRIORITY_CHANGED"
	ActivityEscalation        ActivityType = "ESCALATION"
	ActivitySLAMonitoring     ActivityType = "SLA_MONITORING"
	ActivityCaseResolved      ActivityType = "CASE_RESOLVED"
	ActivityCaseClosed        ActivityType = "CASE_CLOSED"
	ActivityNoteAdded         ActivityType = "NOTE_ADDED"
	ActivityFeedbackReceived  ActivityType = "FEEDBACK_RECEIVED"
	ActivityFollowUpScheduled ActivityType = "FOLLOW_UP_SCHEDULED"
)

// Activity is an immutable audit entry owned by its case.
type Activity struct {
	ID             string
	Seq            int
	Type           ActivityType
	Actor          string
	Description    string
	Automated      bool
	Internal       bool
	StatusBefore   *CaseStatus
	StatusAfter    *CaseStatus
	PriorityBefore *CasePriority
	PriorityAfter  *CasePriority
	AssignedBefore *string
	AssignedAfter  *string
	LevelBefore    *int
	LevelAfter     *int
	CreatedAt      time.Time
}

func (a Activity) clone() Activity {
	out := a
	if a.StatusBefore != nil {
		v := *a.StatusBefore
		out.StatusBefore = &v
	}
	if a.StatusAfter != nil {
		v := *a.StatusAfter
		out.StatusAfter = &v
	}
	if a.PriorityBefore != nil {
		v := *a.PriorityBefore
		out.PriorityBefore = &v
	}
	if a.PriorityAfter != nil {
		v := *a.PriorityAfter
		out.PriorityAfter = &v
	}
	out.AssignedBefore = cloneString(a.AssignedBefore)
	out.AssignedAfter = cloneString(a.AssignedAfter)
	if a.LevelBefore != nil {
		v := *a.LevelBefore
		out.LevelBefore = &v
	}
	if a.LevelAfter != nil {
		v := *a.LevelAfter
		out.LevelAfter = &v
	}
	return out
}

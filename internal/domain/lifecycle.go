package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidTransition is returned when a status edge is not part of the lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrTargetRequired is returned when a case would leave SUBMITTED without a
	// resolution target.
	ErrTargetRequired = errors.New("resolution target must be set before leaving SUBMITTED")
)

var allowedTransitions = map[CaseStatus][]CaseStatus{
	CaseStatusSubmitted:       {CaseStatusAcknowledged, CaseStatusEscalated, CaseStatusRejected, CaseStatusCancelled},
	CaseStatusAcknowledged:    {CaseStatusUnderReview, CaseStatusEscalated, CaseStatusRejected, CaseStatusCancelled},
	CaseStatusUnderReview:     {CaseStatusInvestigating, CaseStatusResolved, CaseStatusEscalated, CaseStatusRejected, CaseStatusCancelled},
	CaseStatusInvestigating:   {CaseStatusUnderReview, CaseStatusPendingResponse, CaseStatusResolved, CaseStatusEscalated, CaseStatusCancelled},
	CaseStatusPendingResponse: {CaseStatusInvestigating, CaseStatusResolved, CaseStatusEscalated, CaseStatusCancelled},
	CaseStatusEscalated:       {CaseStatusUnderReview, CaseStatusResolved, CaseStatusEscalated, CaseStatusCancelled},
	CaseStatusResolved:        {CaseStatusClosed},
	CaseStatusClosed:          {},
	CaseStatusRejected:        {},
	CaseStatusCancelled:       {},
}

// CanTransition reports whether current → next is a lifecycle edge.
func CanTransition(current, next CaseStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

func (c *Case) checkLeavingSubmitted(next CaseStatus) error {
	if c.Status == CaseStatusSubmitted && next != CaseStatusSubmitted && c.ResolutionTargetAt == nil {
		return ErrTargetRequired
	}
	return nil
}

// Change describes who performs a mutation and why.
type Change struct {
	Actor       string
	Description string
	Automated   bool
	At          time.Time
}

// SystemChange builds an automated change performed by the system actor.
func SystemChange(description string, at time.Time) Change {
	return Change{Actor: SystemActor, Description: description, Automated: true, At: at}
}

func (c *Case) appendActivity(activity Activity, change Change) *Activity {
	activity.ID = uuid.NewString()
	activity.Seq = len(c.Activities) + 1
	activity.Actor = change.Actor
	if activity.Actor == "" {
		activity.Actor = SystemActor
	}
	activity.Description = change.Description
	activity.Automated = change.Automated
	activity.CreatedAt = change.At
	c.Activities = append(c.Activities, activity)
	c.UpdatedAt = change.At
	return &c.Activities[len(c.Activities)-1]
}

// Record appends a free-form activity that does not mutate tracked fields.
func (c *Case) Record(activityType ActivityType, change Change) *Activity {
	return c.appendActivity(Activity{Type: activityType}, change)
}

// AddNote appends a comment activity.
func (c *Case) AddNote(internal bool, change Change) *Activity {
	return c.appendActivity(Activity{Type: ActivityNoteAdded, Internal: internal}, change)
}

// Transition moves the case along a lifecycle edge and records one activity.
func (c *Case) Transition(next CaseStatus, change Change) error {
	if !CanTransition(c.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, next)
	}
	if err := c.checkLeavingSubmitted(next); err != nil {
		return err
	}
	before := c.Status
	c.Status = next
	activityType := ActivityStatusChanged
	switch next {
	case CaseStatusResolved:
		at := change.At
		c.ResolvedAt = &at
		activityType = ActivityCaseResolved
	case CaseStatusClosed:
		activityType = ActivityCaseClosed
	}
	c.appendActivity(Activity{
		Type:         activityType,
		StatusBefore: &before,
		StatusAfter:  &next,
	}, change)
	return nil
}

// Assign sets the assignee and records one activity. When next is non-empty the
// status change is captured in the same entry.
func (c *Case) Assign(staffID string, next CaseStatus, change Change) error {
	if next != "" && next != c.Status {
		if !CanTransition(c.Status, next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, next)
		}
		if err := c.checkLeavingSubmitted(next); err != nil {
			return err
		}
	}
	previous := c.AssigneeID
	assignee := staffID
	c.AssigneeID = &assignee
	at := change.At
	c.AssignedAt = &at

	activity := Activity{
		Type:           ActivityCaseAssigned,
		AssignedBefore: cloneString(previous),
		AssignedAfter:  cloneString(&assignee),
	}
	if previous != nil {
		activity.Type = ActivityCaseReassigned
	}
	if next != "" && next != c.Status {
		before := c.Status
		c.Status = next
		activity.StatusBefore = &before
		activity.StatusAfter = &next
	}
	c.appendActivity(activity, change)
	return nil
}

// ChangePriority sets a new priority and records one activity. It is a no-op
// when the priority is unchanged.
func (c *Case) ChangePriority(next CasePriority, change Change) bool {
	if next == c.Priority {
		return false
	}
	before := c.Priority
	c.Priority = next
	c.appendActivity(Activity{
		Type:           ActivityPriorityChanged,
		PriorityBefore: &before,
		PriorityAfter:  &next,
	}, change)
	return true
}

// Escalate moves the case to ESCALATED at the given level and assignee and
// records one activity carrying before/after status, assignee and level.
// The escalation level never decreases.
func (c *Case) Escalate(level int, assignee string, reason string, change Change) error {
	if c.Status != CaseStatusEscalated && !CanTransition(c.Status, CaseStatusEscalated) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, CaseStatusEscalated)
	}
	if err := c.checkLeavingSubmitted(CaseStatusEscalated); err != nil {
		return err
	}
	if level < c.EscalationLevel {
		level = c.EscalationLevel
	}
	statusBefore := c.Status
	statusAfter := CaseStatusEscalated
	levelBefore := c.EscalationLevel
	levelAfter := level
	previous := c.AssigneeID
	target := assignee

	c.Status = CaseStatusEscalated
	c.EscalationLevel = level
	c.AssigneeID = &target
	at := change.At
	c.AssignedAt = &at
	escalatedAt := change.At
	c.EscalatedAt = &escalatedAt
	c.EscalationReason = reason

	c.appendActivity(Activity{
		Type:           ActivityEscalation,
		StatusBefore:   &statusBefore,
		StatusAfter:    &statusAfter,
		AssignedBefore: cloneString(previous),
		AssignedAfter:  cloneString(&target),
		LevelBefore:    &levelBefore,
		LevelAfter:     &levelAfter,
	}, change)
	return nil
}

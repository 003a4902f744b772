package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers. The values double as
// notification template keys.
type EventType string

const (
	EventCaseAcknowledged     EventType = "case_acknowledged"
	EventCaseAssigned         EventType = "case_assigned"
	EventSLAWarning           EventType = "sla_warning"
	EventSLAUrgent            EventType = "sla_urgent"
	EventSLABreach            EventType = "sla_breach"
	EventSLACriticalBreach    EventType = "sla_critical_breach"
	EventEscalationAssigned   EventType = "escalation_assigned"
	EventEscalationHandoff    EventType = "escalation_handoff"
	EventEscalationUpdate     EventType = "escalation_update"
	EventManagementEscalation EventType = "management_escalation"
	EventCaseOverdue          EventType = "case_overdue"
	EventCaseResolved         EventType = "case_resolved"
)

// AllEventTypes lists every event a notification handler may subscribe to.
var AllEventTypes = []EventType{
	EventCaseAcknowledged,
	EventCaseAssigned,
	EventSLAWarning,
	EventSLAUrgent,
	EventSLABreach,
	EventSLACriticalBreach,
	EventEscalationAssigned,
	EventEscalationHandoff,
	EventEscalationUpdate,
	EventManagementEscalation,
	EventCaseOverdue,
	EventCaseResolved,
}

// Audience tells the notification layer who the recipient is.
type Audience string

const (
	AudienceComplainant Audience = "complainant"
	AudienceStaff       Audience = "staff"
	AudienceManagement  Audience = "management"
)

// Event represents a notification request emitted after a durable case change.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	CaseID     string         `json:"case_id"`
	CaseNumber string         `json:"case_number"`
	Audience   Audience       `json:"audience"`
	Recipient  string         `json:"recipient"`
	Timestamp  time.Time      `json:"timestamp"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// NewEvent stamps a new event with an id.
func NewEvent(eventType EventType, caseID, caseNumber string, audience Audience, recipient string, at time.Time, payload map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		CaseID:     caseID,
		CaseNumber: caseNumber,
		Audience:   audience,
		Recipient:  recipient,
		Timestamp:  at,
		Payload:    payload,
	}
}

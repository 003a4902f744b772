package dto

import (
	"time"

	"github.com/spec-kit/grievance-service/internal/domain"
)

// CreateCaseRequest payload.
type CreateCaseRequest struct {
	ComplainantID      string                   `json:"complainant_id"`
	ComplainantContact string                   `json:"complainant_contact"`
	Subject            string                   `json:"subject"`
	Description        string                   `json:"description"`
	Category           domain.GrievanceCategory `json:"category"`
	Priority           domain.CasePriority      `json:"priority"`
}

// AssignCaseRequest payload.
type AssignCaseRequest struct {
	StaffID string `json:"staff_id"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.CaseStatus `json:"status"`
	Note   string            `json:"note"`
}

// EscalateCaseRequest payload.
type EscalateCaseRequest struct {
	Trigger string `json:"trigger"`
	Reason  string `json:"reason"`
}

// ResolveCaseRequest payload.
type ResolveCaseRequest struct {
	Summary string `json:"summary"`
}

// CommentRequest payload.
type CommentRequest struct {
	Text     string `json:"text"`
	Internal bool   `json:"internal"`
}

// FeedbackRequest payload.
type FeedbackRequest struct {
	Satisfaction domain.Satisfaction `json:"satisfaction"`
	Comment      string              `json:"comment"`
}

// CaseSummary response.
type CaseSummary struct {
	ID                 string                   `json:"id"`
	CaseNumber         string                   `json:"case_number"`
	Subject            string                   `json:"subject"`
	Category           domain.GrievanceCategory `json:"category"`
	Priority           domain.CasePriority      `json:"priority"`
	Status             domain.CaseStatus        `json:"status"`
	EscalationLevel    int                      `json:"escalation_level"`
	AssigneeID         *string                  `json:"assignee_id"`
	SubmittedAt        time.Time                `json:"submitted_at"`
	ResolutionTargetAt *time.Time               `json:"resolution_target_at"`
	UpdatedAt          time.Time                `json:"updated_at"`
}

// CaseDetailResponse provides the full case.
type CaseDetailResponse struct {
	CaseSummary
	ComplainantID     string               `json:"complainant_id"`
	Description       string               `json:"description"`
	AssignedAt        *time.Time           `json:"assigned_at"`
	ResolvedAt        *time.Time           `json:"resolved_at"`
	EscalatedAt       *time.Time           `json:"escalated_at"`
	EscalationReason  string               `json:"escalation_reason,omitempty"`
	ResolutionSummary string               `json:"resolution_summary,omitempty"`
	Satisfaction      *domain.Satisfaction `json:"satisfaction"`
	Version           int64                `json:"version"`
	Activities        []ActivityResponse   `json:"activities"`
}

// ActivityResponse represents one audit entry.
type ActivityResponse struct {
	ID             string               `json:"id"`
	Seq            int                  `json:"seq"`
	Type           domain.ActivityType  `json:"type"`
	Actor          string               `json:"actor"`
	Description    string               `json:"description"`
	Automated      bool                 `json:"automated"`
	Internal       bool                 `json:"internal"`
	StatusBefore   *domain.CaseStatus   `json:"status_before,omitempty"`
	StatusAfter    *domain.CaseStatus   `json:"status_after,omitempty"`
	PriorityBefore *domain.CasePriority `json:"priority_before,omitempty"`
	PriorityAfter  *domain.CasePriority `json:"priority_after,omitempty"`
	AssignedBefore *string              `json:"assigned_before,omitempty"`
	AssignedAfter  *string              `json:"assigned_after,omitempty"`
	LevelBefore    *int                 `json:"level_before,omitempty"`
	LevelAfter     *int                 `json:"level_after,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

// SLAStatusResponse is the SLA view of a case.
type SLAStatusResponse struct {
	CaseID            string              `json:"case_id"`
	CaseNumber        string              `json:"case_number"`
	Priority          domain.CasePriority `json:"priority"`
	TargetAt          time.Time           `json:"target_at"`
	EvaluatedAt       time.Time           `json:"evaluated_at"`
	PercentageElapsed float64             `json:"percentage_elapsed"`
	RemainingHours    float64             `json:"remaining_hours"`
	Tier              string              `json:"tier"`
	Risk              string              `json:"risk"`
	WarningThreshold  float64             `json:"warning_threshold"`
	Overdue           bool                `json:"overdue"`
}

// EscalationResponse reports an applied escalation.
type EscalationResponse struct {
	Case          CaseSummary `json:"case"`
	Trigger       string      `json:"trigger"`
	Type          string      `json:"escalation_type"`
	Urgency       string      `json:"urgency"`
	Scope         string      `json:"notification_scope"`
	PreviousLevel int         `json:"previous_level"`
	NewLevel      int         `json:"new_level"`
	NewAssignee   string      `json:"new_assignee"`
	SLAShortened  bool        `json:"sla_shortened"`
}

// SweepResponse summarises a manually triggered sweep.
type SweepResponse struct {
	Job        string   `json:"job"`
	Total      int      `json:"total"`
	Changed    int      `json:"changed"`
	Escalated  int      `json:"escalated"`
	Failed     int      `json:"failed"`
	FailedIDs  []string `json:"failed_case_ids,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/events"
	"github.com/spec-kit/grievance-service/internal/repository"
	apperrors "github.com/spec-kit/grievance-service/pkg/util/errorutil"
)

// CaseService coordinates case creation and manual staff actions.
type CaseService struct {
	store        repository.CaseRepository
	mutator      *CaseMutator
	orchestrator *WorkflowOrchestrator
	sla          *SLAClock
	resolver     *EscalationResolver
	workload     repository.WorkloadTracker
	publisher    publisher
	logger       *zap.Logger
}

// CaseDependencies bundles collaborators for the case service.
type CaseDependencies struct {
	Store        repository.CaseRepository
	Mutator      *CaseMutator
	Orchestrator *WorkflowOrchestrator
	SLA          *SLAClock
	Resolver     *EscalationResolver
	Workload     repository.WorkloadTracker
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// CaseCreateInput describes a new grievance.
type CaseCreateInput struct {
	ComplainantID      string
	ComplainantContact string
	Subject            string
	Description        string
	Category           domain.GrievanceCategory
	Priority           domain.CasePriority
}

// NewCaseService constructs the service.
func NewCaseService(deps CaseDependencies) *CaseService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaseService{
		store:        deps.Store,
		mutator:      deps.Mutator,
		orchestrator: deps.Orchestrator,
		sla:          deps.SLA,
		resolver:     deps.Resolver,
		workload:     deps.Workload,
		publisher:    publisher{dispatcher: deps.Dispatcher, logger: logger},
		logger:       logger,
	}
}

// CreateCase stores a SUBMITTED case and runs intake on it. When intake fails
// the stored case is returned and the next SLA sweep finishes intake.
func (s *CaseService) CreateCase(ctx context.Context, input CaseCreateInput) (*domain.Case, error) {
	input.ComplainantID = strings.TrimSpace(input.ComplainantID)
	input.Subject = strings.TrimSpace(input.Subject)
	input.Description = strings.TrimSpace(input.Description)
	if input.ComplainantID == "" || input.Subject == "" || input.Description == "" {
		return nil, apperrors.NewValidationError("complainant, subject and description are required", nil)
	}
	if input.Category == "" {
		input.Category = domain.CategoryOther
	}
	if !input.Category.Valid() {
		return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": input.Category})
	}
	if input.Priority == "" {
		input.Priority = domain.CasePriorityMedium
	}
	if !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}

	now := s.sla.Now()
	c := &domain.Case{
		ID:                 uuid.NewString(),
		CaseNumber:         generateCaseNumber(now),
		ComplainantID:      input.ComplainantID,
		ComplainantContact: strings.TrimSpace(input.ComplainantContact),
		Subject:            input.Subject,
		Description:        input.Description,
		Category:           input.Category,
		Priority:           input.Priority,
		Status:             domain.CaseStatusSubmitted,
		SubmittedAt:        now,
		CreatedAt:          now,
	}
	c.Record(domain.ActivityCaseCreated, domain.Change{
		Actor:       input.ComplainantID,
		Description: "Grievance submitted",
		At:          now,
	})
	if err := s.mutator.Create(ctx, c); err != nil {
		return nil, err
	}

	processed, err := s.orchestrator.ProcessNewCase(ctx, c.ID)
	if err != nil {
		s.logger.Warn("case intake deferred to next sweep",
			zap.String("case_id", c.ID),
			zap.String("case_number", c.CaseNumber),
			zap.Error(err))
		return c, nil
	}
	return processed, nil
}

// GetCase returns a case by id.
func (s *CaseService) GetCase(ctx context.Context, id string) (*domain.Case, error) {
	return s.mutator.Load(ctx, id)
}

// GetCaseByNumber returns a case by its public case number.
func (s *CaseService) GetCaseByNumber(ctx context.Context, caseNumber string) (*domain.Case, error) {
	sctx, cancel := s.mutator.storeContext(ctx)
	defer cancel()
	c, err := s.store.GetByCaseNumber(sctx, caseNumber)
	return c, wrapStoreErr(err)
}

// GetSLA evaluates the case's SLA position now.
func (s *CaseService) GetSLA(ctx context.Context, id string) (SLAStatus, error) {
	c, err := s.mutator.Load(ctx, id)
	if err != nil {
		return SLAStatus{}, err
	}
	return s.sla.Evaluate(c, s.sla.Now()), nil
}

// Activities returns the case's activity log in order.
func (s *CaseService) Activities(ctx context.Context, id string) ([]domain.Activity, error) {
	c, err := s.mutator.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.Activities, nil
}

// ListByAssignee lists cases held by a staff member. openOnly restricts the
// result to cases still counting against an SLA.
func (s *CaseService) ListByAssignee(ctx context.Context, staffID string, openOnly bool) ([]*domain.Case, error) {
	var statuses []domain.CaseStatus
	if openOnly {
		statuses = domain.OpenStatuses
	}
	sctx, cancel := s.mutator.storeContext(ctx)
	defer cancel()
	cases, err := s.store.FindByAssignee(sctx, staffID, statuses)
	return cases, wrapStoreErr(err)
}

// AssignCase hands a case to a staff member. New and escalated cases move to
// UNDER_REVIEW in the same step.
func (s *CaseService) AssignCase(ctx context.Context, id, staffID, actor string) (*domain.Case, error) {
	staffID = strings.TrimSpace(staffID)
	if staffID == "" {
		return nil, apperrors.NewValidationError("staff id is required", nil)
	}
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var previous string
	saved, changed, err := s.mutator.Mutate(ctx, id, func(c *domain.Case) (bool, error) {
		if !c.IsOpen() {
			return false, apperrors.NewValidationError("case is not open", map[string]any{"status": c.Status})
		}
		previous = c.Assignee()
		if previous == staffID {
			return false, nil
		}
		s.sla.EnsureTarget(c)
		next := c.Status
		switch c.Status {
		case domain.CaseStatusSubmitted, domain.CaseStatusAcknowledged, domain.CaseStatusEscalated:
			next = domain.CaseStatusUnderReview
		}
		change := s.change(actor, fmt.Sprintf("Case assigned to %s", staffID))
		if c.Status == domain.CaseStatusSubmitted {
			if err := c.Transition(domain.CaseStatusAcknowledged, change); err != nil {
				return false, err
			}
		}
		return true, c.Assign(staffID, next, change)
	})
	if err != nil {
		return nil, lifecycleErr(err)
	}
	if !changed {
		return saved, nil
	}

	s.moveWorkload(ctx, previous, staffID)
	s.publisher.publish(ctx, saved, events.EventCaseAssigned, events.AudienceStaff, staffID, s.sla.Now(), map[string]any{
		"priority": string(saved.Priority),
		"category": string(saved.Category),
		"actor":    actor,
	})
	return saved, nil
}

// UpdateStatus moves a case along a lifecycle edge. Escalation and resolution
// have their own operations because they carry extra state.
func (s *CaseService) UpdateStatus(ctx context.Context, id string, status domain.CaseStatus, note, actor string) (*domain.Case, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": status})
	}
	switch status {
	case domain.CaseStatusEscalated:
		return nil, apperrors.NewValidationError("use the escalate operation", map[string]any{"status": status})
	case domain.CaseStatusResolved:
		return nil, apperrors.NewValidationError("use the resolve operation", map[string]any{"status": status})
	}
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var releasedFrom string
	saved, _, err := s.mutator.Mutate(ctx, id, func(c *domain.Case) (bool, error) {
		releasedFrom = ""
		description := strings.TrimSpace(note)
		if description == "" {
			description = fmt.Sprintf("Status changed from %s to %s", c.Status, status)
		}
		wasOpen := c.IsOpen()
		if c.Status == domain.CaseStatusSubmitted {
			s.sla.EnsureTarget(c)
		}
		if err := c.Transition(status, s.change(actor, description)); err != nil {
			return false, err
		}
		if wasOpen && !c.IsOpen() {
			releasedFrom = c.Assignee()
		}
		return true, nil
	})
	if err != nil {
		return nil, lifecycleErr(err)
	}
	s.releaseWorkload(ctx, releasedFrom)
	return saved, nil
}

// EscalateCase escalates a case manually under the given trigger.
func (s *CaseService) EscalateCase(ctx context.Context, id string, trigger EscalationTrigger, reason, actor string) (*domain.Case, EscalationResult, error) {
	if !trigger.Valid() {
		return nil, EscalationResult{}, apperrors.NewValidationError("unknown escalation trigger", map[string]any{"trigger": trigger})
	}
	if err := requireActor(actor); err != nil {
		return nil, EscalationResult{}, err
	}
	var result EscalationResult
	saved, _, err := s.mutator.Mutate(ctx, id, func(c *domain.Case) (bool, error) {
		if !c.IsOpen() {
			return false, apperrors.NewValidationError("case is not open", map[string]any{"status": c.Status})
		}
		s.sla.EnsureTarget(c)
		plan, err := s.resolver.Plan(c, trigger)
		if err != nil {
			return false, err
		}
		result, err = s.resolver.Apply(c, plan, strings.TrimSpace(reason), s.change(actor, ""))
		if err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return nil, EscalationResult{}, lifecycleErr(err)
	}
	s.resolver.PostEscalation(ctx, saved, result)
	return saved, result, nil
}

// ResolveCase resolves a case with a summary and tells the complainant.
func (s *CaseService) ResolveCase(ctx context.Context, id, summary, actor string) (*domain.Case, error) {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil, apperrors.NewValidationError("resolution summary is required", nil)
	}
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	saved, _, err := s.mutator.Mutate(ctx, id, func(c *domain.Case) (bool, error) {
		if err := c.Transition(domain.CaseStatusResolved, s.change(actor, "Case resolved: "+summary)); err != nil {
			return false, err
		}
		c.ResolutionSummary = summary
		return true, nil
	})
	if err != nil {
		return nil, lifecycleErr(err)
	}

	s.releaseWorkload(ctx, saved.Assignee())
	s.publisher.publish(ctx, saved, events.EventCaseResolved, events.AudienceComplainant, complainantRecipient(saved), s.sla.Now(), map[string]any{
		"resolution_summary": summary,
		"resolved_by":        actor,
	})
	s.logger.Info("case resolved",
		zap.String("case_id", saved.ID),
		zap.String("case_number", saved.CaseNumber),
		zap.String("staff_id", actor))
	return saved, nil
}

// CloseCase closes a resolved case.
func (s *CaseService) CloseCase(ctx context.Context, id, actor string) (*domain.Case, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	saved, _, err := s.mutator.Mutate(ctx, id, func(c *domain.Case) (bool, error) {
		return true, c.Transition(domain.CaseStatusClosed, s.change(actor, "Case closed"))
	})
	if err != nil {
		return nil, lifecycleErr(err)
	}
	return saved, nil
}

// AddComment appends an internal or public note.
func (s *CaseService) AddComment(ctx context.Context, id, text string, internal bool, actor string) (*domain.Activity, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("comment text is required", nil)
	}
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	saved, _, err := s.mutator.Mutate(ctx, id, func(c *domain.Case) (bool, error) {
		c.AddNote(internal, s.change(actor, text))
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	activity := saved.Activities[len(saved.Activities)-1]
	return &activity, nil
}

// RecordFeedback stores the complainant's satisfaction on a resolved or closed case.
func (s *CaseService) RecordFeedback(ctx context.Context, id string, satisfaction domain.Satisfaction, comment, actor string) (*domain.Case, error) {
	if !satisfaction.Valid() {
		return nil, apperrors.NewValidationError("unknown satisfaction rating", map[string]any{"satisfaction": satisfaction})
	}
	saved, _, err := s.mutator.Mutate(ctx, id, func(c *domain.Case) (bool, error) {
		if c.Status != domain.CaseStatusResolved && c.Status != domain.CaseStatusClosed {
			return false, apperrors.NewValidationError("feedback is accepted only after resolution", map[string]any{"status": c.Status})
		}
		rating := satisfaction
		c.Satisfaction = &rating
		description := fmt.Sprintf("Feedback received: %s", satisfaction)
		if comment = strings.TrimSpace(comment); comment != "" {
			description += " - " + comment
		}
		who := actor
		if who == "" {
			who = c.ComplainantID
		}
		c.Record(domain.ActivityFeedbackReceived, s.change(who, description))
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *CaseService) change(actor, description string) domain.Change {
	return domain.Change{Actor: actor, Description: description, At: s.sla.Now()}
}

func (s *CaseService) moveWorkload(ctx context.Context, from, to string) {
	s.releaseWorkload(ctx, from)
	if s.workload == nil || to == "" {
		return
	}
	if err := s.workload.Increment(ctx, to); err != nil {
		s.logger.Warn("workload increment failed", zap.String("staff_id", to), zap.Error(err))
	}
}

func (s *CaseService) releaseWorkload(ctx context.Context, staffID string) {
	if s.workload == nil || staffID == "" {
		return
	}
	if err := s.workload.Decrement(ctx, staffID); err != nil {
		s.logger.Warn("workload decrement failed", zap.String("staff_id", staffID), zap.Error(err))
	}
}

func requireActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return apperrors.NewValidationError("actor is required", nil)
	}
	return nil
}

// lifecycleErr turns a rejected lifecycle edge into a validation error.
func lifecycleErr(err error) error {
	if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrTargetRequired) {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	return err
}

func generateCaseNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("GRV-%s-%s", now.Format("20060102"), suffix)
}

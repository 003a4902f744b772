package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/grievance-service/internal/api/dto"
	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/service"
	apperrors "github.com/spec-kit/grievance-service/pkg/util/errorutil"
)

// ActorHeader carries the acting staff id for manual actions.
const ActorHeader = "X-Actor-ID"

// CasesHandler exposes case intake and staff actions.
type CasesHandler struct {
	service *service.CaseService
}

// NewCasesHandler constructs handler.
func NewCasesHandler(caseService *service.CaseService) *CasesHandler {
	return &CasesHandler{service: caseService}
}

func actorFrom(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Get(ActorHeader))
}

// CreateCase POST /cases.
func (h *CasesHandler) CreateCase(c *fiber.Ctx) error {
	var req dto.CreateCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	created, err := h.service.CreateCase(c.UserContext(), service.CaseCreateInput{
		ComplainantID:      req.ComplainantID,
		ComplainantContact: req.ComplainantContact,
		Subject:            req.Subject,
		Description:        req.Description,
		Category:           domain.GrievanceCategory(strings.ToUpper(string(req.Category))),
		Priority:           domain.CasePriority(strings.ToUpper(string(req.Priority))),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": caseDetail(created)})
}

// GetCase GET /cases/:id.
func (h *CasesHandler) GetCase(c *fiber.Ctx) error {
	found, err := h.service.GetCase(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseDetail(found)})
}

// GetCaseByNumber GET /cases/number/:caseNumber.
func (h *CasesHandler) GetCaseByNumber(c *fiber.Ctx) error {
	found, err := h.service.GetCaseByNumber(c.UserContext(), c.Params("caseNumber"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseDetail(found)})
}

// GetSLA GET /cases/:id/sla.
func (h *CasesHandler) GetSLA(c *fiber.Ctx) error {
	st, err := h.service.GetSLA(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": slaResponse(st)})
}

// ListActivities GET /cases/:id/activities.
func (h *CasesHandler) ListActivities(c *fiber.Ctx) error {
	activities, err := h.service.Activities(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": activityResponses(activities)})
}

// AssignCase POST /cases/:id/assign.
func (h *CasesHandler) AssignCase(c *fiber.Ctx) error {
	var req dto.AssignCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	updated, err := h.service.AssignCase(c.UserContext(), c.Params("id"), req.StaffID, actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseSummary(updated)})
}

// UpdateStatus POST /cases/:id/status.
func (h *CasesHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	status := domain.CaseStatus(strings.ToUpper(string(req.Status)))
	updated, err := h.service.UpdateStatus(c.UserContext(), c.Params("id"), status, req.Note, actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseSummary(updated)})
}

// EscalateCase POST /cases/:id/escalate.
func (h *CasesHandler) EscalateCase(c *fiber.Ctx) error {
	var req dto.EscalateCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	trigger := service.EscalationTrigger(strings.ToUpper(strings.TrimSpace(req.Trigger)))
	updated, result, err := h.service.EscalateCase(c.UserContext(), c.Params("id"), trigger, req.Reason, actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.EscalationResponse{
		Case:          caseSummary(updated),
		Trigger:       string(result.Trigger),
		Type:          string(result.Type),
		Urgency:       string(result.Urgency),
		Scope:         string(result.Scope),
		PreviousLevel: result.PreviousLevel,
		NewLevel:      result.TargetLevel,
		NewAssignee:   result.TargetAssignee,
		SLAShortened:  result.SLAShortened(),
	}})
}

// ResolveCase POST /cases/:id/resolve.
func (h *CasesHandler) ResolveCase(c *fiber.Ctx) error {
	var req dto.ResolveCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	updated, err := h.service.ResolveCase(c.UserContext(), c.Params("id"), req.Summary, actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseSummary(updated)})
}

// CloseCase POST /cases/:id/close.
func (h *CasesHandler) CloseCase(c *fiber.Ctx) error {
	updated, err := h.service.CloseCase(c.UserContext(), c.Params("id"), actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseSummary(updated)})
}

// AddComment POST /cases/:id/comments.
func (h *CasesHandler) AddComment(c *fiber.Ctx) error {
	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	activity, err := h.service.AddComment(c.UserContext(), c.Params("id"), req.Text, req.Internal, actorFrom(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": activityResponse(*activity)})
}

// RecordFeedback POST /cases/:id/feedback.
func (h *CasesHandler) RecordFeedback(c *fiber.Ctx) error {
	var req dto.FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	satisfaction := domain.Satisfaction(strings.ToUpper(string(req.Satisfaction)))
	updated, err := h.service.RecordFeedback(c.UserContext(), c.Params("id"), satisfaction, req.Comment, actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseSummary(updated)})
}

// ListStaffCases GET /staff/:staffId/cases.
func (h *CasesHandler) ListStaffCases(c *fiber.Ctx) error {
	openOnly := c.QueryBool("open", true)
	cases, err := h.service.ListByAssignee(c.UserContext(), c.Params("staffId"), openOnly)
	if err != nil {
		return err
	}
	items := make([]dto.CaseSummary, 0, len(cases))
	for _, found := range cases {
		items = append(items, caseSummary(found))
	}
	return c.JSON(fiber.Map{"data": items})
}

func caseSummary(c *domain.Case) dto.CaseSummary {
	return dto.CaseSummary{
		ID:                 c.ID,
		CaseNumber:         c.CaseNumber,
		Subject:            c.Subject,
		Category:           c.Category,
		Priority:           c.Priority,
		Status:             c.Status,
		EscalationLevel:    c.EscalationLevel,
		AssigneeID:         c.AssigneeID,
		SubmittedAt:        c.SubmittedAt,
		ResolutionTargetAt: c.ResolutionTargetAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

func caseDetail(c *domain.Case) dto.CaseDetailResponse {
	return dto.CaseDetailResponse{
		CaseSummary:       caseSummary(c),
		ComplainantID:     c.ComplainantID,
		Description:       c.Description,
		AssignedAt:        c.AssignedAt,
		ResolvedAt:        c.ResolvedAt,
		EscalatedAt:       c.EscalatedAt,
		EscalationReason:  c.EscalationReason,
		ResolutionSummary: c.ResolutionSummary,
		Satisfaction:      c.Satisfaction,
		Version:           c.Version,
		Activities:        activityResponses(c.Activities),
	}
}

func activityResponse(a domain.Activity) dto.ActivityResponse {
	return dto.ActivityResponse{
		ID:             a.ID,
		Seq:            a.Seq,
		Type:           a.Type,
		Actor:          a.Actor,
		Description:    a.Description,
		Automated:      a.Automated,
		Internal:       a.Internal,
		StatusBefore:   a.StatusBefore,
		StatusAfter:    a.StatusAfter,
		PriorityBefore: a.PriorityBefore,
		PriorityAfter:  a.PriorityAfter,
		AssignedBefore: a.AssignedBefore,
		AssignedAfter:  a.AssignedAfter,
		LevelBefore:    a.LevelBefore,
		LevelAfter:     a.LevelAfter,
		CreatedAt:      a.CreatedAt,
	}
}

func activityResponses(activities []domain.Activity) []dto.ActivityResponse {
	out := make([]dto.ActivityResponse, 0, len(activities))
	for _, a := range activities {
		out = append(out, activityResponse(a))
	}
	return out
}

func slaResponse(st service.SLAStatus) dto.SLAStatusResponse {
	return dto.SLAStatusResponse{
		CaseID:            st.CaseID,
		CaseNumber:        st.CaseNumber,
		Priority:          st.Priority,
		TargetAt:          st.TargetAt,
		EvaluatedAt:       st.EvaluatedAt,
		PercentageElapsed: st.PercentageElapsed,
		RemainingHours:    st.Remaining.Round(time.Minute).Hours(),
		Tier:              string(st.Tier),
		Risk:              string(st.Risk),
		WarningThreshold:  st.WarningThreshold,
		Overdue:           st.Overdue,
	}
}

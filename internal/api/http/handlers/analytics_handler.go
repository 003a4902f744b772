package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/grievance-service/internal/api/dto"
	"github.com/spec-kit/grievance-service/internal/service"
	apperrors "github.com/spec-kit/grievance-service/pkg/util/errorutil"
)

// AnalyticsHandler serves read-only dashboards.
type AnalyticsHandler struct {
	service *service.AnalyticsService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: analytics}
}

// Dashboard GET /analytics/dashboard?range=30d.
func (h *AnalyticsHandler) Dashboard(c *fiber.Ctx) error {
	dashboard, err := h.service.Dashboard(c.UserContext(), c.Query("range", "30d"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dashboard})
}

// RealTime GET /analytics/realtime.
func (h *AnalyticsHandler) RealTime(c *fiber.Ctx) error {
	summary, err := h.service.RealTime(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

// Routing GET /analytics/routing.
func (h *AnalyticsHandler) Routing(c *fiber.Ctx) error {
	analytics, err := h.service.Routing(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": analytics})
}

// SweepTrigger runs a sweep job on demand.
type SweepTrigger interface {
	RunOnce(ctx context.Context, job string) (service.SweepReport, error)
}

// SweepsHandler lets operators run a sweep outside its schedule.
type SweepsHandler struct {
	trigger SweepTrigger
	busy    error
}

// NewSweepsHandler constructs handler. busy is the error the trigger returns
// when the job is already running.
func NewSweepsHandler(trigger SweepTrigger, busy error) *SweepsHandler {
	return &SweepsHandler{trigger: trigger, busy: busy}
}

// RunSweep POST /sweeps/:job.
func (h *SweepsHandler) RunSweep(c *fiber.Ctx) error {
	job := c.Params("job")
	if job != service.JobSLASweep && job != service.JobOverdueSweep {
		return apperrors.NewValidationError("unknown sweep job", map[string]any{"job": job})
	}
	report, err := h.trigger.RunOnce(c.UserContext(), job)
	if err != nil {
		if h.busy != nil && errors.Is(err, h.busy) {
			return apperrors.NewConflict("sweep already running", map[string]any{"job": job})
		}
		return err
	}
	return c.JSON(fiber.Map{"data": sweepResponse(report)})
}

func sweepResponse(report service.SweepReport) dto.SweepResponse {
	out := dto.SweepResponse{
		Job:        report.Job,
		Total:      report.Total,
		Changed:    report.Changed,
		Escalated:  report.Escalated,
		Failed:     len(report.Failures),
		DurationMS: report.Duration.Milliseconds(),
	}
	for _, f := range report.Failures {
		out.FailedIDs = append(out.FailedIDs, f.CaseID)
	}
	return out
}

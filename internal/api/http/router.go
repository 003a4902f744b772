package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/grievance-service/internal/api/http/handlers"
	"github.com/spec-kit/grievance-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health    *handlers.HealthHandler
	Cases     *handlers.CasesHandler
	Analytics *handlers.AnalyticsHandler
	Sweeps    *handlers.SweepsHandler
	Staff     *handlers.StaffHandler
	Metrics   *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api/v1")

	cases := api.Group("/cases")
	cases.Post("/", cfg.Cases.CreateCase)
	cases.Get("/number/:caseNumber", cfg.Cases.GetCaseByNumber)
	cases.Get("/:id", cfg.Cases.GetCase)
	cases.Get("/:id/sla", cfg.Cases.GetSLA)
	cases.Get("/:id/activities", cfg.Cases.ListActivities)
	cases.Post("/:id/assign", cfg.Cases.AssignCase)
	cases.Post("/:id/status", cfg.Cases.UpdateStatus)
	cases.Post("/:id/escalate", cfg.Cases.EscalateCase)
	cases.Post("/:id/resolve", cfg.Cases.ResolveCase)
	cases.Post("/:id/close", cfg.Cases.CloseCase)
	cases.Post("/:id/comments", cfg.Cases.AddComment)
	cases.Post("/:id/feedback", cfg.Cases.RecordFeedback)

	staff := api.Group("/staff")
	if cfg.Staff != nil {
		staff.Get("/", cfg.Staff.ListStaff)
		staff.Get("/:staffId", cfg.Staff.GetStaff)
	}
	staff.Get("/:staffId/cases", cfg.Cases.ListStaffCases)

	analytics := api.Group("/analytics")
	analytics.Get("/dashboard", cfg.Analytics.Dashboard)
	analytics.Get("/realtime", cfg.Analytics.RealTime)
	analytics.Get("/routing", cfg.Analytics.Routing)

	if cfg.Sweeps != nil {
		api.Post("/sweeps/:job", cfg.Sweeps.RunSweep)
	}
}

package app

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/grievance-service/internal/api/http"
	"github.com/spec-kit/grievance-service/internal/api/http/handlers"
	"github.com/spec-kit/grievance-service/internal/config"
	"github.com/spec-kit/grievance-service/internal/events"
	"github.com/spec-kit/grievance-service/internal/observability"
	"github.com/spec-kit/grievance-service/internal/persistence"
	"github.com/spec-kit/grievance-service/internal/repository"
	"github.com/spec-kit/grievance-service/internal/service"
	"github.com/spec-kit/grievance-service/internal/worker"
)

// App holds the wired engine shared by the API server and the CLI.
type App struct {
	Config  *config.Config
	Routing config.RoutingConfig
	Logger  *zap.Logger
	Metrics *observability.Metrics

	Postgres *persistence.Postgres
	Redis    *persistence.Redis

	Cases    repository.CaseRepository
	Workload repository.WorkloadTracker

	Dispatcher    events.Dispatcher
	Orchestrator  *service.WorkflowOrchestrator
	CaseService   *service.CaseService
	Analytics     *service.AnalyticsService
	Notifications *service.NotificationService
	Staff         *service.StaffService
	Scheduler     *worker.Scheduler
	FollowUps     *worker.FollowUpScheduler

	stopNotifications func()
}

// Options overrides parts of the wiring, mostly for tests.
type Options struct {
	Clock service.Clock
	// InMemory skips Postgres and Redis even when configured.
	InMemory bool
}

// New connects the stores and wires every service.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	routing, err := config.LoadRouting(cfg.Workflow.RoutingConfigPath)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Routing:  routing,
		Logger:   logger,
		Metrics:  observability.NewMetrics(),
		Postgres: &persistence.Postgres{},
		Redis:    &persistence.Redis{},
	}

	if !opts.InMemory {
		if err := a.connect(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	staffSource, err := a.buildStores(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Dispatcher = events.NewAsyncDispatcher(events.AsyncOptions{
		QueueSize:      cfg.Notification.QueueSize,
		Workers:        cfg.Notification.Workers,
		HandlerTimeout: cfg.Notification.Timeout,
		Logger:         logger,
	})
	a.Notifications = service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: a.Dispatcher,
		Config:     cfg.Notification,
		Logger:     logger,
		Metrics:    a.Metrics,
	})

	slaClock := service.NewSLAClock(opts.Clock)
	directory := service.NewStaffDirectory(service.StaffDirectoryDependencies{
		Source:   staffSource,
		Workload: a.Workload,
	})
	router, err := service.NewRoutingScorer(service.RoutingScorerDependencies{
		Directory: directory,
		Routing:   routing,
		Logger:    logger,
		Metrics:   a.Metrics,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	resolver := service.NewEscalationResolver(service.EscalationResolverDependencies{
		Routing:    routing,
		Workload:   a.Workload,
		Dispatcher: a.Dispatcher,
		Logger:     logger,
		Metrics:    a.Metrics,
	})
	mutator := service.NewCaseMutator(a.Cases, cfg.Workflow.StoreTimeout, logger)

	a.Orchestrator = service.NewWorkflowOrchestrator(service.WorkflowOrchestratorDependencies{
		Store:      a.Cases,
		Mutator:    mutator,
		SLA:        slaClock,
		Router:     router,
		Resolver:   resolver,
		Workload:   a.Workload,
		Dispatcher: a.Dispatcher,
		Config:     cfg.Workflow,
		Logger:     logger,
		Metrics:    a.Metrics,
	})
	a.FollowUps = worker.NewFollowUpScheduler(a.Orchestrator, cfg.Workflow.FollowUpDelay, cfg.Workflow.StoreTimeout, logger)
	resolver.SetFollowUpScheduler(a.FollowUps)

	a.CaseService = service.NewCaseService(service.CaseDependencies{
		Store:        a.Cases,
		Mutator:      mutator,
		Orchestrator: a.Orchestrator,
		SLA:          slaClock,
		Resolver:     resolver,
		Workload:     a.Workload,
		Dispatcher:   a.Dispatcher,
		Logger:       logger,
	})
	a.Staff = service.NewStaffService(service.StaffDependencies{
		Source:   staffSource,
		Workload: a.Workload,
	})
	a.Analytics = service.NewAnalyticsService(service.AnalyticsDependencies{
		Store:        a.Cases,
		SLA:          slaClock,
		Workload:     a.Workload,
		Logger:       logger,
		StoreTimeout: cfg.Workflow.StoreTimeout,
	})

	var lock worker.SweepLock
	if cfg.Workflow.DistributedLock && a.Redis.Enabled() {
		lock = worker.NewRedisSweepLock(a.Redis.Client, logger)
	}
	a.Scheduler = worker.NewScheduler(worker.SchedulerOptions{
		Runner:          a.Orchestrator,
		SLAInterval:     cfg.Workflow.SLASweepInterval,
		OverdueInterval: cfg.Workflow.OverdueSweepInterval,
		Lock:            lock,
		Logger:          logger,
		Metrics:         a.Metrics,
	})

	a.stopNotifications = worker.StartNotificationWorker(a.Notifications, a.Dispatcher)
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	pg, err := persistence.NewPostgres(ctx, a.Config.Postgres, a.Logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	a.Postgres = pg
	if pg.Enabled() && a.Config.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), a.Config.Postgres.MigrationsDir, a.Logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	rdb, err := persistence.NewRedis(ctx, a.Config.Redis, a.Logger)
	if err != nil {
		a.Logger.Warn("redis unavailable; using in-process workload tracking", zap.Error(err))
	}
	a.Redis = rdb
	return nil
}

func (a *App) buildStores(ctx context.Context) (service.StaffSource, error) {
	if a.Redis.Enabled() {
		a.Workload = repository.NewRedisWorkloadTracker(a.Redis.Client)
	} else {
		a.Workload = repository.NewMemoryWorkloadTracker()
	}

	if !a.Postgres.Enabled() {
		a.Logger.Warn("case store running in memory")
		a.Cases = repository.NewMemoryCaseRepository()
		return service.NewConfigStaffSource(a.Routing), nil
	}

	pool := a.Postgres.PoolHandle()
	a.Cases = repository.NewCaseRepository(pool)
	staffRepo := repository.NewStaffRepository(pool)
	if err := service.SeedStaff(ctx, staffRepo, a.Routing, a.Logger); err != nil {
		return nil, fmt.Errorf("seed staff: %w", err)
	}
	return service.NewRepositoryStaffSource(staffRepo), nil
}

// HTTP builds the fiber application.
func (a *App) HTTP() *fiber.App {
	server := fiber.New(fiber.Config{AppName: a.Config.App.Name})
	httptransport.RegisterMiddlewares(server, a.Logger, a.Metrics, a.Config.App.RequestTimeout())
	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(a.Config.App.Name, a.Config.App.Version, map[string]handlers.Pinger{
			"postgres": a.Postgres,
			"redis":    a.Redis,
		}),
		Cases:     handlers.NewCasesHandler(a.CaseService),
		Analytics: handlers.NewAnalyticsHandler(a.Analytics),
		Sweeps:    handlers.NewSweepsHandler(a.Scheduler, worker.ErrSweepInProgress),
		Staff:     handlers.NewStaffHandler(a.Staff),
		Metrics:   a.Metrics,
	})
	return server
}

// Start launches the periodic sweeps.
func (a *App) Start(ctx context.Context) {
	a.Scheduler.Start(ctx)
}

// Close stops background work and releases connections.
func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.FollowUps != nil {
		a.FollowUps.Stop()
	}
	if a.stopNotifications != nil {
		a.stopNotifications()
	}
	a.Redis.Close()
	a.Postgres.Close()
}

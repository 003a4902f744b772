package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/grievance-service/internal/config"
	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/repository"
)

const paymentSpecialist = "payment.specialist@dswd.gov.ph"

// faultyStore wraps the memory store with switchable failures.
type faultyStore struct {
	*repository.MemoryCaseRepository

	failSaves  atomic.Bool
	failWindow atomic.Bool

	mu           sync.Mutex
	failRead     map[string]bool
	brokenWindow *time.Time
}

func newFaultyStore() *faultyStore {
	return &faultyStore{MemoryCaseRepository: repository.NewMemoryCaseRepository(), failRead: map[string]bool{}}
}

func (s *faultyStore) breakReads(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRead[id] = true
}

// breakWindowContaining fails any submission query whose range covers at.
func (s *faultyStore) breakWindowContaining(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brokenWindow = &at
}

func (s *faultyStore) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	s.mu.Lock()
	broken := s.failRead[id]
	s.mu.Unlock()
	if broken {
		return nil, errors.New("disk read error")
	}
	return s.MemoryCaseRepository.GetByID(ctx, id)
}

func (s *faultyStore) CompareAndSave(ctx context.Context, c *domain.Case, expected int64) error {
	if s.failSaves.Load() {
		return errors.New("connection reset")
	}
	return s.MemoryCaseRepository.CompareAndSave(ctx, c, expected)
}

func (s *faultyStore) FindBySubmittedBetween(ctx context.Context, from, to time.Time) ([]*domain.Case, error) {
	if s.failWindow.Load() {
		return nil, errors.New("query timeout")
	}
	s.mu.Lock()
	broken := s.brokenWindow != nil && !s.brokenWindow.Before(from) && s.brokenWindow.Before(to)
	s.mu.Unlock()
	if broken {
		return nil, errors.New("query timeout")
	}
	return s.MemoryCaseRepository.FindBySubmittedBetween(ctx, from, to)
}

type engine struct {
	clock        *FixedClock
	store        *faultyStore
	workload     *repository.MemoryWorkloadTracker
	dispatcher   *recordingDispatcher
	resolver     *EscalationResolver
	orchestrator *WorkflowOrchestrator
	cases        *CaseService
	analytics    *AnalyticsService
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	routing := config.DefaultRoutingConfig()
	e := &engine{
		clock:      &FixedClock{At: epoch},
		store:      newFaultyStore(),
		workload:   repository.NewMemoryWorkloadTracker(),
		dispatcher: &recordingDispatcher{},
	}
	sla := NewSLAClock(e.clock)
	router, err := NewRoutingScorer(RoutingScorerDependencies{
		Directory: NewStaffDirectory(StaffDirectoryDependencies{
			Source:   NewConfigStaffSource(routing),
			Workload: e.workload,
		}),
		Routing: routing,
	})
	require.NoError(t, err)
	e.resolver = NewEscalationResolver(EscalationResolverDependencies{
		Routing:    routing,
		Workload:   e.workload,
		Dispatcher: e.dispatcher,
	})
	mutator := NewCaseMutator(e.store, time.Second, nil)
	e.orchestrator = NewWorkflowOrchestrator(WorkflowOrchestratorDependencies{
		Store:      e.store,
		Mutator:    mutator,
		SLA:        sla,
		Router:     router,
		Resolver:   e.resolver,
		Workload:   e.workload,
		Dispatcher: e.dispatcher,
		Config: config.WorkflowConfig{
			Workers:            4,
			EscalationCooldown: 24 * time.Hour,
		},
	})
	e.cases = NewCaseService(CaseDependencies{
		Store:        e.store,
		Mutator:      mutator,
		Orchestrator: e.orchestrator,
		SLA:          sla,
		Resolver:     e.resolver,
		Workload:     e.workload,
		Dispatcher:   e.dispatcher,
	})
	e.analytics = NewAnalyticsService(AnalyticsDependencies{
		Store:    e.store,
		SLA:      sla,
		Workload: e.workload,
	})
	return e
}

func (e *engine) submit(t *testing.T, input CaseCreateInput) *domain.Case {
	t.Helper()
	if input.ComplainantID == "" {
		input.ComplainantID = "citizen-1"
	}
	if input.ComplainantContact == "" {
		input.ComplainantContact = "citizen@example.com"
	}
	if input.Subject == "" {
		input.Subject = "Missing disbursement"
	}
	if input.Description == "" {
		input.Description = "My March disbursement has not arrived"
	}
	if input.Category == "" {
		input.Category = domain.CategoryPaymentIssue
	}
	c, err := e.cases.CreateCase(context.Background(), input)
	require.NoError(t, err)
	return c
}

func (e *engine) load(t *testing.T, id string) *domain.Case {
	t.Helper()
	c, err := e.store.MemoryCaseRepository.GetByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

func (e *engine) workloadOf(id string) int {
	n, _ := e.workload.WorkloadOf(context.Background(), id)
	return n
}

func activityTypes(c *domain.Case) []domain.ActivityType {
	out := make([]domain.ActivityType, 0, len(c.Activities))
	for _, a := range c.Activities {
		out = append(out, a.Type)
	}
	return out
}

func lastActivity(c *domain.Case) domain.Activity {
	return c.Activities[len(c.Activities)-1]
}

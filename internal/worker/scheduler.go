package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/spec-kit/grievance-service/internal/observability"
	"github.com/spec-kit/grievance-service/internal/service"
)

// ErrSweepInProgress is returned by RunOnce when the job is already running.
var ErrSweepInProgress = errors.New("sweep already in progress")

// SweepRunner is implemented by the workflow orchestrator.
type SweepRunner interface {
	RunSLASweep(ctx context.Context) (service.SweepReport, error)
	RunOverdueSweep(ctx context.Context) (service.SweepReport, error)
}

// SweepLock guards a job across instances. Acquire reports false when another
// holder owns the lock.
type SweepLock interface {
	Acquire(ctx context.Context, job string, ttl time.Duration) (release func(), ok bool, err error)
}

// SchedulerOptions configures the periodic sweeps.
type SchedulerOptions struct {
	Runner          SweepRunner
	SLAInterval     time.Duration
	OverdueInterval time.Duration
	Lock            SweepLock
	Logger          *zap.Logger
	Metrics         *observability.Metrics
}

type job struct {
	name     string
	interval time.Duration
	run      func(context.Context) (service.SweepReport, error)
	guard    *semaphore.Weighted
}

// Scheduler runs the SLA and overdue sweeps on their own tickers. A run is
// skipped while the previous run of the same job is still going.
type Scheduler struct {
	jobs    map[string]*job
	lock    SweepLock
	logger  *zap.Logger
	metrics *observability.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler builds the scheduler.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		jobs: map[string]*job{
			service.JobSLASweep: {
				name:     service.JobSLASweep,
				interval: opts.SLAInterval,
				run:      opts.Runner.RunSLASweep,
				guard:    semaphore.NewWeighted(1),
			},
			service.JobOverdueSweep: {
				name:     service.JobOverdueSweep,
				interval: opts.OverdueInterval,
				run:      opts.Runner.RunOverdueSweep,
				guard:    semaphore.NewWeighted(1),
			},
		},
		lock:    opts.Lock,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// Start launches one ticker loop per job. It is a no-op when already started.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	for _, j := range s.jobs {
		if j.interval <= 0 {
			s.logger.Warn("sweep disabled", zap.String("job", j.name))
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, j)
	}
	s.logger.Info("scheduler started")
}

// Stop cancels the loops and waits for in-flight sweeps to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	defer s.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.runJob(ctx, j); err != nil && !errors.Is(err, ErrSweepInProgress) && ctx.Err() == nil {
				s.logger.Error("sweep failed", zap.String("job", j.name), zap.Error(err))
			}
		}
	}
}

// RunOnce runs a job immediately under the same single-flight guards as the
// ticker loops.
func (s *Scheduler) RunOnce(ctx context.Context, name string) (service.SweepReport, error) {
	j, ok := s.jobs[name]
	if !ok {
		return service.SweepReport{}, errors.New("unknown sweep job: " + name)
	}
	return s.runJob(ctx, j)
}

func (s *Scheduler) runJob(ctx context.Context, j *job) (service.SweepReport, error) {
	if !j.guard.TryAcquire(1) {
		s.skip(j.name, "previous run still in progress")
		return service.SweepReport{Job: j.name}, ErrSweepInProgress
	}
	defer j.guard.Release(1)

	if s.lock != nil {
		ttl := j.interval
		if ttl <= 0 {
			ttl = time.Hour
		}
		release, acquired, err := s.lock.Acquire(ctx, j.name, ttl)
		if err != nil {
			// the cross-instance lock is advisory; the local guard still holds
			s.logger.Warn("sweep lock unavailable", zap.String("job", j.name), zap.Error(err))
		} else if !acquired {
			s.skip(j.name, "held by another instance")
			return service.SweepReport{Job: j.name}, ErrSweepInProgress
		} else {
			defer release()
		}
	}

	return j.run(ctx)
}

func (s *Scheduler) skip(job, reason string) {
	s.metrics.RecordSweep(job, "skipped", 0)
	s.logger.Info("sweep skipped", zap.String("job", job), zap.String("reason", reason))
}

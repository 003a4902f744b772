package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CaseEvaluator re-runs the SLA evaluation for one case.
type CaseEvaluator interface {
	EvaluateCase(ctx context.Context, id string) error
}

// FollowUpScheduler re-checks escalated cases after a delay. A newer request
// for the same case replaces the pending one.
type FollowUpScheduler struct {
	evaluator CaseEvaluator
	delay     time.Duration
	timeout   time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	pending map[string]followUp
	seq     uint64
	stopped bool
}

type followUp struct {
	timer *time.Timer
	seq   uint64
}

// NewFollowUpScheduler builds the scheduler. timeout bounds each re-check.
func NewFollowUpScheduler(evaluator CaseEvaluator, delay, timeout time.Duration, logger *zap.Logger) *FollowUpScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FollowUpScheduler{
		evaluator: evaluator,
		delay:     delay,
		timeout:   timeout,
		logger:    logger,
		pending:   make(map[string]followUp),
	}
}

// SetEvaluator binds the evaluator after construction.
func (f *FollowUpScheduler) SetEvaluator(evaluator CaseEvaluator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evaluator = evaluator
}

// ScheduleFollowUp arranges a re-check of caseID after the configured delay.
func (f *FollowUpScheduler) ScheduleFollowUp(caseID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped || f.delay <= 0 {
		return
	}
	if existing, ok := f.pending[caseID]; ok {
		existing.timer.Stop()
	}
	f.seq++
	seq := f.seq
	timer := time.AfterFunc(f.delay, func() {
		f.fire(caseID, seq)
	})
	f.pending[caseID] = followUp{timer: timer, seq: seq}
	f.logger.Debug("follow-up scheduled", zap.String("case_id", caseID), zap.Duration("delay", f.delay))
}

func (f *FollowUpScheduler) fire(caseID string, seq uint64) {
	f.mu.Lock()
	current, ok := f.pending[caseID]
	if !ok || current.seq != seq {
		f.mu.Unlock()
		return
	}
	delete(f.pending, caseID)
	evaluator := f.evaluator
	stopped := f.stopped
	f.mu.Unlock()
	if stopped || evaluator == nil {
		return
	}

	ctx := context.Background()
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	if err := evaluator.EvaluateCase(ctx, caseID); err != nil {
		f.logger.Warn("follow-up evaluation failed", zap.String("case_id", caseID), zap.Error(err))
	}
}

// Pending returns the number of scheduled follow-ups.
func (f *FollowUpScheduler) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Stop cancels every pending follow-up.
func (f *FollowUpScheduler) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	for id, pending := range f.pending {
		pending.timer.Stop()
		delete(f.pending, id)
	}
}

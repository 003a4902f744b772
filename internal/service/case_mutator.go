package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/repository"
	apperrors "github.com/spec-kit/grievance-service/pkg/util/errorutil"
)

// Mutation edits a working copy. It returns false when nothing changed so the
// write can be skipped. It may run twice if the first save loses a race.
type Mutation func(c *domain.Case) (bool, error)

// CaseMutator serializes writers per case id and saves with compare-and-save.
// A stale write is retried once on a fresh read, then surfaced.
type CaseMutator struct {
	store   repository.CaseRepository
	timeout time.Duration
	locks   *keyedMutex
	logger  *zap.Logger
}

// NewCaseMutator builds the mutator. A zero timeout disables store deadlines.
func NewCaseMutator(store repository.CaseRepository, timeout time.Duration, logger *zap.Logger) *CaseMutator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaseMutator{store: store, timeout: timeout, locks: newKeyedMutex(), logger: logger}
}

func (m *CaseMutator) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return storeDeadline(ctx, m.timeout)
}

// storeDeadline bounds one store call. A zero timeout only adds cancellation.
func storeDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// Load reads a case under the store deadline.
func (m *CaseMutator) Load(ctx context.Context, id string) (*domain.Case, error) {
	sctx, cancel := m.storeContext(ctx)
	defer cancel()
	c, err := m.store.GetByID(sctx, id)
	return c, wrapStoreErr(err)
}

// Create persists a new case under the store deadline.
func (m *CaseMutator) Create(ctx context.Context, c *domain.Case) error {
	sctx, cancel := m.storeContext(ctx)
	defer cancel()
	return wrapStoreErr(m.store.Create(sctx, c))
}

// Mutate loads the case, applies fn and saves it. It returns the saved case
// and whether a write happened.
func (m *CaseMutator) Mutate(ctx context.Context, id string, fn Mutation) (*domain.Case, bool, error) {
	unlock := m.locks.lock(id)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		c, err := m.Load(ctx, id)
		if err != nil {
			return nil, false, err
		}
		expected := c.Version
		changed, err := fn(c)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return c, false, nil
		}

		sctx, cancel := m.storeContext(ctx)
		err = m.store.CompareAndSave(sctx, c, expected)
		cancel()
		if err == nil {
			return c, true, nil
		}
		if !apperrors.IsConflict(err) {
			return nil, false, wrapStoreErr(err)
		}
		lastErr = err
		m.logger.Info("case write conflicted; retrying on fresh state",
			zap.String("case_id", id), zap.Int64("expected_version", expected))
	}
	return nil, false, lastErr
}

// wrapStoreErr leaves taxonomy errors alone and marks anything else as a
// dependency failure.
func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*apperrors.DomainError); ok {
		return err
	}
	if apperrors.IsNotFound(err) || apperrors.IsConflict(err) || apperrors.IsDependency(err) {
		return err
	}
	return apperrors.NewDependencyError("case store", err)
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/grievance-service/internal/domain"
	apperrors "github.com/spec-kit/grievance-service/pkg/util/errorutil"
)

// MemoryCaseRepository keeps cases in process. Every read and write copies the
// aggregate so callers only ever hold working copies.
type MemoryCaseRepository struct {
	mu       sync.RWMutex
	cases    map[string]*domain.Case
	byNumber map[string]string
}

// NewMemoryCaseRepository builds an empty in-memory case store.
func NewMemoryCaseRepository() *MemoryCaseRepository {
	return &MemoryCaseRepository{
		cases:    make(map[string]*domain.Case),
		byNumber: make(map[string]string),
	}
}

var _ CaseRepository = (*MemoryCaseRepository)(nil)

func (r *MemoryCaseRepository) Create(_ context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cases[c.ID]; ok {
		return apperrors.NewConflict("case already exists", map[string]any{"id": c.ID})
	}
	if _, ok := r.byNumber[c.CaseNumber]; ok {
		return apperrors.NewConflict("case number already exists", map[string]any{"case_number": c.CaseNumber})
	}
	c.Version = 1
	r.cases[c.ID] = c.Clone()
	r.byNumber[c.CaseNumber] = c.ID
	return nil
}

func (r *MemoryCaseRepository) GetByID(_ context.Context, id string) (*domain.Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cases[id]
	if !ok {
		return nil, caseNotFound("id", id)
	}
	return c.Clone(), nil
}

func (r *MemoryCaseRepository) GetByCaseNumber(_ context.Context, caseNumber string) (*domain.Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byNumber[caseNumber]
	if !ok {
		return nil, caseNotFound("case_number", caseNumber)
	}
	return r.cases[id].Clone(), nil
}

func (r *MemoryCaseRepository) FindByStatusIn(_ context.Context, statuses []domain.CaseStatus) ([]*domain.Case, error) {
	return r.filter(func(c *domain.Case) bool {
		return statusIn(c.Status, statuses)
	}), nil
}

func (r *MemoryCaseRepository) FindByAssignee(_ context.Context, staffID string, statuses []domain.CaseStatus) ([]*domain.Case, error) {
	return r.filter(func(c *domain.Case) bool {
		return c.Assignee() == staffID && (len(statuses) == 0 || statusIn(c.Status, statuses))
	}), nil
}

func (r *MemoryCaseRepository) FindOverdue(_ context.Context, now time.Time) ([]*domain.Case, error) {
	return r.filter(func(c *domain.Case) bool {
		return c.IsOpen() && c.ResolutionTargetAt != nil && c.ResolutionTargetAt.Before(now)
	}), nil
}

func (r *MemoryCaseRepository) FindBySubmittedBetween(_ context.Context, from, to time.Time) ([]*domain.Case, error) {
	return r.filter(func(c *domain.Case) bool {
		return !c.SubmittedAt.Before(from) && c.SubmittedAt.Before(to)
	}), nil
}

func (r *MemoryCaseRepository) CompareAndSave(_ context.Context, c *domain.Case, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.cases[c.ID]
	if !ok {
		return caseNotFound("id", c.ID)
	}
	if current.Version != expectedVersion {
		return staleVersion(c.ID, expectedVersion)
	}
	c.Version = expectedVersion + 1
	r.cases[c.ID] = c.Clone()
	return nil
}

func (r *MemoryCaseRepository) filter(keep func(*domain.Case) bool) []*domain.Case {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*domain.Case
	for _, c := range r.cases {
		if keep(c) {
			result = append(result, c.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SubmittedAt.Equal(result[j].SubmittedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].SubmittedAt.Before(result[j].SubmittedAt)
	})
	return result
}

func statusIn(status domain.CaseStatus, statuses []domain.CaseStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

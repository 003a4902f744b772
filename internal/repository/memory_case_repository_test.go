package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/grievance-service/internal/domain"
	apperrors "github.com/spec-kit/grievance-service/pkg/util/errorutil"
)

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func seedCase(id string, status domain.CaseStatus, submitted time.Time) *domain.Case {
	return &domain.Case{
		ID:          id,
		CaseNumber:  "GRV-" + id,
		Category:    domain.CategoryOther,
		Priority:    domain.CasePriorityMedium,
		Status:      status,
		SubmittedAt: submitted,
	}
}

func TestMemoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryCaseRepository()
	c := seedCase("a", domain.CaseStatusSubmitted, base)

	require.NoError(t, repo.Create(ctx, c))
	assert.Equal(t, int64(1), c.Version)

	byID, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	byNumber, err := repo.GetByCaseNumber(ctx, "GRV-a")
	require.NoError(t, err)
	assert.Equal(t, byID, byNumber)

	err = repo.Create(ctx, seedCase("a", domain.CaseStatusSubmitted, base))
	assert.True(t, apperrors.IsConflict(err))

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryCaseRepository()
	require.NoError(t, repo.Create(ctx, seedCase("a", domain.CaseStatusSubmitted, base)))

	got, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	got.Status = domain.CaseStatusClosed

	again, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusSubmitted, again.Status)
}

func TestMemoryCompareAndSave(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryCaseRepository()
	require.NoError(t, repo.Create(ctx, seedCase("a", domain.CaseStatusSubmitted, base)))

	first, _ := repo.GetByID(ctx, "a")
	second, _ := repo.GetByID(ctx, "a")

	first.Status = domain.CaseStatusAcknowledged
	require.NoError(t, repo.CompareAndSave(ctx, first, 1))
	assert.Equal(t, int64(2), first.Version)

	second.Status = domain.CaseStatusCancelled
	err := repo.CompareAndSave(ctx, second, 1)
	assert.True(t, apperrors.IsConflict(err))

	stored, _ := repo.GetByID(ctx, "a")
	assert.Equal(t, domain.CaseStatusAcknowledged, stored.Status)

	err = repo.CompareAndSave(ctx, seedCase("ghost", domain.CaseStatusSubmitted, base), 1)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMemoryQueries(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryCaseRepository()

	overdueTarget := base.Add(-time.Hour)
	futureTarget := base.Add(time.Hour)
	staff := "staff-1"

	open := seedCase("open", domain.CaseStatusUnderReview, base.Add(-48*time.Hour))
	open.ResolutionTargetAt = &overdueTarget
	open.AssigneeID = &staff
	fresh := seedCase("fresh", domain.CaseStatusSubmitted, base.Add(-time.Hour))
	fresh.ResolutionTargetAt = &futureTarget
	closed := seedCase("closed", domain.CaseStatusClosed, base.Add(-72*time.Hour))
	closed.ResolutionTargetAt = &overdueTarget
	closed.AssigneeID = &staff

	for _, c := range []*domain.Case{open, fresh, closed} {
		require.NoError(t, repo.Create(ctx, c))
	}

	openCases, err := repo.FindByStatusIn(ctx, domain.OpenStatuses)
	require.NoError(t, err)
	assert.Equal(t, []string{"open", "fresh"}, ids(openCases))

	overdue, err := repo.FindOverdue(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, []string{"open"}, ids(overdue))

	assigned, err := repo.FindByAssignee(ctx, staff, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"closed", "open"}, ids(assigned))

	assignedOpen, err := repo.FindByAssignee(ctx, staff, domain.OpenStatuses)
	require.NoError(t, err)
	assert.Equal(t, []string{"open"}, ids(assignedOpen))

	window, err := repo.FindBySubmittedBetween(ctx, base.Add(-72*time.Hour), base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"closed", "open"}, ids(window))
}

func TestMemoryWorkloadTracker(t *testing.T) {
	ctx := context.Background()
	tracker := NewMemoryWorkloadTracker()

	require.NoError(t, tracker.Increment(ctx, "a"))
	require.NoError(t, tracker.Increment(ctx, "a"))
	require.NoError(t, tracker.Decrement(ctx, "a"))
	require.NoError(t, tracker.Decrement(ctx, "b"))

	n, err := tracker.WorkloadOf(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	dist, err := tracker.Distribution(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, dist["b"])
	assert.Equal(t, 1, dist["a"])
}

func ids(cases []*domain.Case) []string {
	out := make([]string, 0, len(cases))
	for _, c := range cases {
		out = append(out, c.ID)
	}
	return out
}

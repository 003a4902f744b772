package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/repository"
	apperrors "github.com/spec-kit/grievance-service/pkg/util/errorutil"
)

// stalledStore never answers a query until the caller's context ends.
type stalledStore struct {
	*repository.MemoryCaseRepository
}

func (s stalledStore) GetByCaseNumber(ctx context.Context, _ string) (*domain.Case, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s stalledStore) FindByAssignee(ctx context.Context, _ string, _ []domain.CaseStatus) ([]*domain.Case, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s stalledStore) FindByStatusIn(ctx context.Context, _ []domain.CaseStatus) ([]*domain.Case, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s stalledStore) FindBySubmittedBetween(ctx context.Context, _, _ time.Time) ([]*domain.Case, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// withinDeadline fails the test if call outlives the store timeout by far.
func withinDeadline(t *testing.T, call func() error) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- call() }()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("store call ignored its deadline")
		return nil
	}
}

func TestReadPathsHonourStoreTimeout(t *testing.T) {
	const timeout = 20 * time.Millisecond
	store := stalledStore{MemoryCaseRepository: repository.NewMemoryCaseRepository()}
	sla := NewSLAClock(&FixedClock{At: epoch})
	cases := NewCaseService(CaseDependencies{
		Store:   store,
		Mutator: NewCaseMutator(store, timeout, nil),
		SLA:     sla,
	})
	analytics := NewAnalyticsService(AnalyticsDependencies{
		Store:        store,
		SLA:          sla,
		StoreTimeout: timeout,
	})
	ctx := context.Background()

	err := withinDeadline(t, func() error {
		_, err := cases.GetCaseByNumber(ctx, "GRV-2024-000001")
		return err
	})
	assert.True(t, apperrors.IsDependency(err))

	err = withinDeadline(t, func() error {
		_, err := cases.ListByAssignee(ctx, paymentSpecialist, true)
		return err
	})
	assert.True(t, apperrors.IsDependency(err))

	err = withinDeadline(t, func() error {
		_, err := analytics.Dashboard(ctx, "7d")
		return err
	})
	assert.True(t, apperrors.IsDependency(err))

	err = withinDeadline(t, func() error {
		_, err := analytics.RealTime(ctx)
		return err
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsDependency(err))
}

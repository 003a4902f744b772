package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/repository"
	apperrors "github.com/spec-kit/grievance-service/pkg/util/errorutil"
)

// racingStore lets a competing writer win the next n saves.
type racingStore struct {
	*repository.MemoryCaseRepository
	races int
}

func (s *racingStore) CompareAndSave(ctx context.Context, c *domain.Case, expected int64) error {
	if s.races > 0 {
		s.races--
		other, err := s.MemoryCaseRepository.GetByID(ctx, c.ID)
		if err != nil {
			return err
		}
		other.AddNote(true, domain.Change{Actor: "staff-2", Description: "concurrent note", At: epoch})
		if err := s.MemoryCaseRepository.CompareAndSave(ctx, other, other.Version); err != nil {
			return err
		}
	}
	return s.MemoryCaseRepository.CompareAndSave(ctx, c, expected)
}

func seededRacingStore(t *testing.T, races int) *racingStore {
	t.Helper()
	store := &racingStore{MemoryCaseRepository: repository.NewMemoryCaseRepository(), races: races}
	require.NoError(t, store.Create(context.Background(), slaCase(domain.CasePriorityMedium)))
	return store
}

func TestMutateRetriesOnceOnConflict(t *testing.T) {
	store := seededRacingStore(t, 1)
	m := NewCaseMutator(store, 0, nil)
	calls := 0

	saved, changed, err := m.Mutate(context.Background(), "case-1", func(c *domain.Case) (bool, error) {
		calls++
		c.AddNote(false, domain.Change{Actor: "staff-1", Description: "my note", At: epoch})
		return true, nil
	})

	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(3), saved.Version)
	require.Len(t, saved.Activities, 2)
	assert.Equal(t, "concurrent note", saved.Activities[0].Description)
	assert.Equal(t, "my note", saved.Activities[1].Description)
}

func TestMutateSurfacesRepeatedConflict(t *testing.T) {
	store := seededRacingStore(t, 2)
	m := NewCaseMutator(store, 0, nil)

	_, _, err := m.Mutate(context.Background(), "case-1", func(c *domain.Case) (bool, error) {
		c.AddNote(false, domain.Change{Actor: "staff-1", Description: "my note", At: epoch})
		return true, nil
	})

	assert.True(t, apperrors.IsConflict(err))
}

func TestMutateSkipsUnchanged(t *testing.T) {
	store := seededRacingStore(t, 1)
	m := NewCaseMutator(store, 0, nil)

	saved, changed, err := m.Mutate(context.Background(), "case-1", func(*domain.Case) (bool, error) {
		return false, nil
	})

	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, int64(1), saved.Version)
	assert.Equal(t, 1, store.races)
}

func TestMutatePropagatesMutationError(t *testing.T) {
	store := seededRacingStore(t, 0)
	m := NewCaseMutator(store, 0, nil)
	boom := errors.New("rejected")

	_, _, err := m.Mutate(context.Background(), "case-1", func(*domain.Case) (bool, error) {
		return false, boom
	})

	assert.ErrorIs(t, err, boom)
}

func TestLoadWrapsStoreFailures(t *testing.T) {
	store := newFaultyStore()
	store.breakReads("case-1")
	m := NewCaseMutator(store, 0, nil)

	_, err := m.Load(context.Background(), "case-1")
	assert.True(t, apperrors.IsDependency(err))

	_, err = NewCaseMutator(repository.NewMemoryCaseRepository(), 0, nil).Load(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

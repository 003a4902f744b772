package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/grievance-service/internal/config"
	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/repository"
	apperrors "github.com/spec-kit/grievance-service/pkg/util/errorutil"
)

type staticStaff struct {
	members []domain.StaffMember
	err     error
}

func (s staticStaff) ListStaff(context.Context) ([]domain.StaffMember, error) {
	return s.members, s.err
}

func TestRosterOrdersByWorkload(t *testing.T) {
	ctx := context.Background()
	workload := repository.NewMemoryWorkloadTracker()
	require.NoError(t, workload.Increment(ctx, "a"))
	require.NoError(t, workload.Increment(ctx, "a"))
	require.NoError(t, workload.Increment(ctx, "b"))

	svc := NewStaffService(StaffDependencies{
		Source: staticStaff{members: []domain.StaffMember{
			{ID: "a", Active: true},
			{ID: "b", Active: true},
			{ID: "c", Active: true},
			{ID: "d", Active: false},
		}},
		Workload: workload,
	})

	roster, err := svc.Roster(ctx, false)
	require.NoError(t, err)
	ids := make([]string, 0, len(roster))
	for _, entry := range roster {
		ids = append(ids, entry.Member.ID)
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids)
	assert.Equal(t, 2, roster[2].Workload)

	all, err := svc.Roster(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestRosterFromRoutingConfig(t *testing.T) {
	routing := config.DefaultRoutingConfig()
	svc := NewStaffService(StaffDependencies{
		Source:   NewConfigStaffSource(routing),
		Workload: repository.NewMemoryWorkloadTracker(),
	})

	roster, err := svc.Roster(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, roster, len(routing.Staff))

	entry, err := svc.Member(context.Background(), paymentSpecialist)
	require.NoError(t, err)
	assert.Equal(t, domain.StaffRoleSpecialist, entry.Member.Role)

	_, err = svc.Member(context.Background(), "nobody")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRosterSourceFailure(t *testing.T) {
	svc := NewStaffService(StaffDependencies{
		Source:   staticStaff{err: errors.New("db down")},
		Workload: repository.NewMemoryWorkloadTracker(),
	})

	_, err := svc.Roster(context.Background(), false)

	assert.True(t, apperrors.IsDependency(err))
}

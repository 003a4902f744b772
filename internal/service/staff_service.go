package service

import (
	"context"
	"sort"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/repository"
	apperrors "github.com/spec-kit/grievance-service/pkg/util/errorutil"
)

// StaffService exposes the routing roster to operators.
type StaffService struct {
	source   StaffSource
	workload repository.WorkloadTracker
}

// StaffLoad is one roster entry with its live workload.
type StaffLoad struct {
	Member   domain.StaffMember
	Workload int
}

// StaffDependencies wires the service.
type StaffDependencies struct {
	Source   StaffSource
	Workload repository.WorkloadTracker
}

// NewStaffService constructs the service.
func NewStaffService(deps StaffDependencies) *StaffService {
	return &StaffService{source: deps.Source, workload: deps.Workload}
}

// Roster lists staff ordered by current workload, lightest first. Inactive
// members are included only when includeInactive is set.
func (s *StaffService) Roster(ctx context.Context, includeInactive bool) ([]StaffLoad, error) {
	members, err := s.source.ListStaff(ctx)
	if err != nil {
		return nil, apperrors.NewDependencyError("staff directory", err)
	}
	out := make([]StaffLoad, 0, len(members))
	for _, m := range members {
		if !m.Active && !includeInactive {
			continue
		}
		load, err := s.workload.WorkloadOf(ctx, m.ID)
		if err != nil {
			return nil, apperrors.NewDependencyError("workload tracker", err)
		}
		out = append(out, StaffLoad{Member: m, Workload: load})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Workload < out[j].Workload })
	return out, nil
}

// Member returns one roster entry.
func (s *StaffService) Member(ctx context.Context, id string) (StaffLoad, error) {
	roster, err := s.Roster(ctx, true)
	if err != nil {
		return StaffLoad{}, err
	}
	for _, entry := range roster {
		if entry.Member.ID == id {
			return entry, nil
		}
	}
	return StaffLoad{}, apperrors.NewNotFound("staff member", map[string]any{"staff_id": id})
}

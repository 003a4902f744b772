package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-service/internal/config"
	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/repository"
)

// StaffDirectory answers the routing questions about staff: who can take a
// case, how loaded they are, and how good they are at it.
type StaffDirectory interface {
	Candidates(ctx context.Context) ([]string, error)
	WorkloadOf(ctx context.Context, staffID string) (int, error)
	Expertise(ctx context.Context, staffID string, category domain.GrievanceCategory) (float64, bool)
	Performance(ctx context.Context, staffID string) (float64, bool)
}

// StaffSource lists routing candidates in a stable order.
type StaffSource interface {
	ListStaff(ctx context.Context) ([]domain.StaffMember, error)
}

type configStaffSource struct {
	members []domain.StaffMember
}

// NewConfigStaffSource serves the staff table from routing configuration.
func NewConfigStaffSource(routing config.RoutingConfig) StaffSource {
	return &configStaffSource{members: StaffFromConfig(routing)}
}

func (s *configStaffSource) ListStaff(context.Context) ([]domain.StaffMember, error) {
	return s.members, nil
}

// StaffFromConfig converts configured staff profiles into domain members.
func StaffFromConfig(routing config.RoutingConfig) []domain.StaffMember {
	members := make([]domain.StaffMember, 0, len(routing.Staff))
	for _, profile := range routing.Staff {
		role := domain.StaffRoleSpecialist
		if domain.IsSenior(profile.ID) {
			role = domain.StaffRoleManager
		}
		members = append(members, domain.StaffMember{
			ID:          profile.ID,
			Name:        profile.Name,
			Email:       profile.ID,
			Role:        role,
			Expertise:   profile.Expertise,
			Performance: profile.Performance,
			Active:      true,
		})
	}
	return members
}

type repositoryStaffSource struct {
	repo repository.StaffRepository
}

// NewRepositoryStaffSource lists active staff from the staff repository.
func NewRepositoryStaffSource(repo repository.StaffRepository) StaffSource {
	return &repositoryStaffSource{repo: repo}
}

func (s *repositoryStaffSource) ListStaff(ctx context.Context) ([]domain.StaffMember, error) {
	active := true
	return s.repo.List(ctx, repository.StaffFilter{Active: &active})
}

// SeedStaff upserts the configured staff profiles into the repository.
func SeedStaff(ctx context.Context, repo repository.StaffRepository, routing config.RoutingConfig, logger *zap.Logger) error {
	members := StaffFromConfig(routing)
	for i := range members {
		if err := repo.Upsert(ctx, &members[i]); err != nil {
			return err
		}
	}
	logger.Info("staff directory seeded", zap.Int("count", len(members)))
	return nil
}

// StaffDirectoryDependencies wires the directory.
type StaffDirectoryDependencies struct {
	Source   StaffSource
	Workload repository.WorkloadTracker
}

type staffDirectory struct {
	source   StaffSource
	workload repository.WorkloadTracker

	mu       sync.RWMutex
	snapshot map[string]domain.StaffMember
}

// NewStaffDirectory combines a staff source with live workload counters.
func NewStaffDirectory(deps StaffDirectoryDependencies) StaffDirectory {
	return &staffDirectory{
		source:   deps.Source,
		workload: deps.Workload,
		snapshot: map[string]domain.StaffMember{},
	}
}

func (d *staffDirectory) Candidates(ctx context.Context) ([]string, error) {
	members, err := d.source.ListStaff(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := make(map[string]domain.StaffMember, len(members))
	ids := make([]string, 0, len(members))
	for _, m := range members {
		if !m.Active {
			continue
		}
		snapshot[m.ID] = m
		ids = append(ids, m.ID)
	}
	d.mu.Lock()
	d.snapshot = snapshot
	d.mu.Unlock()
	return ids, nil
}

func (d *staffDirectory) WorkloadOf(ctx context.Context, staffID string) (int, error) {
	return d.workload.WorkloadOf(ctx, staffID)
}

func (d *staffDirectory) Expertise(_ context.Context, staffID string, category domain.GrievanceCategory) (float64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	member, ok := d.snapshot[staffID]
	if !ok {
		return 0, false
	}
	return member.ExpertiseIn(category)
}

func (d *staffDirectory) Performance(_ context.Context, staffID string) (float64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	member, ok := d.snapshot[staffID]
	if !ok || member.Performance == nil {
		return 0, false
	}
	return *member.Performance, true
}

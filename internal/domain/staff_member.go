package domain

import (
	"strings"
	"time"
)

// StaffRole enumerates the seniority bands used by routing and escalation.
type StaffRole string

const (
	StaffRoleSpecialist StaffRole = "SPECIALIST"
	StaffRoleSupervisor StaffRole = "SUPERVISOR"
	StaffRoleManager    StaffRole = "MANAGER"
	StaffRoleDirector   StaffRole = "DIRECTOR"
)

// StaffMember models a caseworker eligible for routing.
type StaffMember struct {
	ID          string
	Name        string
	Email       string
	Role        StaffRole
	Expertise   map[GrievanceCategory]float64
	Performance *float64
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ExpertiseIn returns the expertise score for a category and whether it is known.
func (s StaffMember) ExpertiseIn(category GrievanceCategory) (float64, bool) {
	score, ok := s.Expertise[category]
	return score, ok
}

// IsSenior reports whether a staff identifier belongs to a manager or director.
func IsSenior(staffID string) bool {
	id := strings.ToLower(staffID)
	return strings.Contains(id, "manager") || strings.Contains(id, "director")
}

package dto

import "github.com/spec-kit/grievance-service/internal/domain"

// StaffResponse is one routing candidate with its live open-case count.
type StaffResponse struct {
	ID          string                               `json:"id"`
	Name        string                               `json:"name"`
	Email       string                               `json:"email"`
	Role        domain.StaffRole                     `json:"role"`
	Active      bool                                 `json:"active"`
	Workload    int                                  `json:"workload"`
	Performance *float64                             `json:"performance,omitempty"`
	Expertise   map[domain.GrievanceCategory]float64 `json:"expertise,omitempty"`
}

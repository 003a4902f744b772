package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/grievance-service/internal/api/dto"
	"github.com/spec-kit/grievance-service/internal/service"
)

// StaffHandler exposes the routing roster.
type StaffHandler struct {
	service *service.StaffService
}

// NewStaffHandler constructs handler.
func NewStaffHandler(staffService *service.StaffService) *StaffHandler {
	return &StaffHandler{service: staffService}
}

// ListStaff GET /staff?include_inactive=true.
func (h *StaffHandler) ListStaff(c *fiber.Ctx) error {
	roster, err := h.service.Roster(c.UserContext(), c.QueryBool("include_inactive", false))
	if err != nil {
		return err
	}
	items := make([]dto.StaffResponse, 0, len(roster))
	for _, entry := range roster {
		items = append(items, staffResponse(entry))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetStaff GET /staff/:staffId.
func (h *StaffHandler) GetStaff(c *fiber.Ctx) error {
	entry, err := h.service.Member(c.UserContext(), c.Params("staffId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": staffResponse(entry)})
}

func staffResponse(entry service.StaffLoad) dto.StaffResponse {
	m := entry.Member
	return dto.StaffResponse{
		ID:          m.ID,
		Name:        m.Name,
		Email:       m.Email,
		Role:        m.Role,
		Active:      m.Active,
		Workload:    entry.Workload,
		Performance: m.Performance,
		Expertise:   m.Expertise,
	}
}

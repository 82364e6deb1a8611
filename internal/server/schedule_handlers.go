package server

import (
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UpdateSlotsRequest is the body of PUT /api/schedule/slots.
type UpdateSlotsRequest struct {
	Slots    []string `json:"slots"`
	Timezone string   `json:"timezone"`
}

// SchedulePreviewResponse lists upcoming assignments.
type SchedulePreviewResponse struct {
	Times []time.Time `json:"times"`
}

// GetSlots godoc
// @Summary Get posting time slots
// @Tags schedule
// @Produce json
// @Success 200 {object} models.TimeSlotConfig
// @Security BearerAuth
// @Router /schedule/slots [get]
func (s *Server) GetSlots(c *fiber.Ctx) error {
	cfg, err := s.scheduleService.GetSlots(c.UserContext(), ownerID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(cfg)
}

// UpdateSlots godoc
// @Summary Replace posting time slots
// @Description Slots are "HH:MM" times of day in the given IANA timezone. Duplicates are removed.
// @Tags schedule
// @Accept json
// @Produce json
// @Param request body UpdateSlotsRequest true "Slots"
// @Success 200 {object} models.TimeSlotConfig
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /schedule/slots [put]
func (s *Server) UpdateSlots(c *fiber.Ctx) error {
	var req UpdateSlotsRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	cfg, err := s.scheduleService.UpdateSlots(c.UserContext(), service.UpdateSlotsInput{
		OwnerID:  ownerID(c),
		Slots:    req.Slots,
		Timezone: req.Timezone,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(cfg)
}

// PreviewSchedule godoc
// @Summary Preview the next slot assignments
// @Description Nothing is persisted.
// @Tags schedule
// @Produce json
// @Param count query int false "Number of assignments (1-50)" default(5)
// @Success 200 {object} SchedulePreviewResponse
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /schedule/preview [get]
func (s *Server) PreviewSchedule(c *fiber.Ctx) error {
	times, err := s.scheduleService.Preview(c.UserContext(), ownerID(c), c.QueryInt("count", 5))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(SchedulePreviewResponse{Times: times})
}

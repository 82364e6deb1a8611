package server

import (
	"log/slog"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"

	"github.com/gofiber/fiber/v2"
)

// TriggerDispatch godoc
// @Summary Publish due posts
// @Description Runs one dispatch pass. Per-post failures are recorded on the post and counted in the summary.
// @Tags jobs
// @Produce json
// @Success 200 {object} jobs.DispatchSummary
// @Failure 401 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security JobSecret
// @Router /jobs/dispatch [post]
func (s *Server) TriggerDispatch(c *fiber.Ctx) error {
	summary, err := s.dispatcher.Run(c.UserContext())
	if err != nil {
		slog.ErrorContext(c.UserContext(), "dispatch run aborted", "error", err)
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(summary)
}

// TriggerFollowerStats godoc
// @Summary Record follower snapshots
// @Description Records one snapshot per owner with a usable credential.
// @Tags jobs
// @Produce json
// @Success 200 {object} jobs.FollowerSummary
// @Failure 401 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security JobSecret
// @Router /jobs/follower-stats [post]
func (s *Server) TriggerFollowerStats(c *fiber.Ctx) error {
	summary, err := s.followers.Run(c.UserContext())
	if err != nil {
		slog.ErrorContext(c.UserContext(), "follower stats run aborted", "error", err)
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(summary)
}

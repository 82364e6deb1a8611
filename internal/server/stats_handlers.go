package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetFollowerHistory godoc
// @Summary Follower count history
// @Tags stats
// @Produce json
// @Param since query string false "RFC 3339 lower bound on recorded_at"
// @Param limit query int false "Most recent snapshots to return, oldest first (1-1000)" default(100)
// @Success 200 {array} models.FollowerSnapshot
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /stats/followers [get]
func (s *Server) GetFollowerHistory(c *fiber.Ctx) error {
	since, err := parseTimeQuery(c, "since")
	if err != nil {
		return nil
	}
	snaps, err := s.statsService.History(c.UserContext(), ownerID(c), since, c.QueryInt("limit", 100))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(snaps)
}

// GetLatestFollowers godoc
// @Summary Most recent follower snapshot
// @Tags stats
// @Produce json
// @Success 200 {object} models.FollowerSnapshot
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /stats/followers/latest [get]
func (s *Server) GetLatestFollowers(c *fiber.Ctx) error {
	snap, err := s.statsService.Latest(c.UserContext(), ownerID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(snap)
}

package server

import (
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ConnectAccountRequest is the body of PUT /api/account/credential.
type ConnectAccountRequest struct {
	AccessToken string     `json:"access_token"`
	AccountID   string     `json:"account_id"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// GetCredentialStatus godoc
// @Summary Show the connected account
// @Description Reports connection status. The token itself is never returned.
// @Tags account
// @Produce json
// @Success 200 {object} credential.Status
// @Security BearerAuth
// @Router /account/credential [get]
func (s *Server) GetCredentialStatus(c *fiber.Ctx) error {
	status, err := s.accountService.Status(c.UserContext(), ownerID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(status)
}

// ConnectAccount godoc
// @Summary Connect a platform account
// @Description Stores an already-obtained access token encrypted at rest.
// @Tags account
// @Accept json
// @Produce json
// @Param request body ConnectAccountRequest true "Credential"
// @Success 200 {object} credential.Status
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /account/credential [put]
func (s *Server) ConnectAccount(c *fiber.Ctx) error {
	var req ConnectAccountRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	status, err := s.accountService.Connect(c.UserContext(), service.ConnectAccountInput{
		OwnerID:     ownerID(c),
		AccessToken: req.AccessToken,
		AccountID:   req.AccountID,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(status)
}

// DisconnectAccount godoc
// @Summary Disconnect the platform account
// @Tags account
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /account/credential [delete]
func (s *Server) DisconnectAccount(c *fiber.Ctx) error {
	if err := s.accountService.Disconnect(c.UserContext(), ownerID(c)); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

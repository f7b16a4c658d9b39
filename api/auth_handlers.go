package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/docchat/pkg/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin handles POST /v1/auth/login. A successful login creates a
// session and sets its handle as the session cookie.
func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid login request body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return badRequest(c, "email and password are required")
	}

	user, err := s.auth.Authenticate(req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: err.Error()})
	}
	if err != nil {
		return s.writeError(c, err)
	}

	payload, err := auth.SessionData{User: *user}.Encode()
	if err != nil {
		return s.writeError(c, err)
	}

	h, err := s.sessions.Create(c.UserContext(), payload)
	if err != nil {
		return s.writeError(c, err)
	}

	s.setSessionCookie(c, h)
	s.logger.Info("user logged in", "user_id", user.ID)
	return c.JSON(user)
}

// handleLogout handles POST /v1/auth/logout.
func (s *Server) handleLogout(c *fiber.Ctx) error {
	if err := s.sessions.Invalidate(c.UserContext(), currentHandle(c)); err != nil {
		return s.writeError(c, err)
	}

	s.clearSessionCookie(c)
	s.logger.Info("user logged out", "user_id", currentUser(c).ID)
	return c.SendStatus(fiber.StatusNoContent)
}

// handleMe handles GET /v1/auth/me.
func (s *Server) handleMe(c *fiber.Ctx) error {
	return c.JSON(currentUser(c))
}

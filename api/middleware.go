package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/docchat/pkg/auth"
	"github.com/papercomputeco/docchat/pkg/session"
)

const (
	// SessionCookie is the name of the cookie carrying the session handle.
	SessionCookie = "session_id"

	localsUser   = "docchat_user"
	localsHandle = "docchat_session"
)

// requireSession resolves the session cookie to a user. Requests without a
// live session get 401, and a cookie naming an unknown or expired session
// is cleared.
func (s *Server) requireSession(c *fiber.Ctx) error {
	h := session.Handle(c.Cookies(SessionCookie))
	if h == "" {
		return unauthenticated(c)
	}

	payload, ok, err := s.sessions.Read(c.UserContext(), h)
	if err != nil {
		return s.writeError(c, err)
	}
	if !ok {
		s.clearSessionCookie(c)
		return unauthenticated(c)
	}

	data, err := auth.DecodeSessionData(payload)
	if err != nil {
		s.logger.Warn("dropping unreadable session", "error", err)
		if err := s.sessions.Invalidate(c.UserContext(), h); err != nil {
			return s.writeError(c, err)
		}
		s.clearSessionCookie(c)
		return unauthenticated(c)
	}

	c.Locals(localsUser, &data.User)
	c.Locals(localsHandle, h)
	return c.Next()
}

// currentUser returns the user stored by requireSession.
func currentUser(c *fiber.Ctx) *auth.User {
	u, _ := c.Locals(localsUser).(*auth.User)
	return u
}

func currentHandle(c *fiber.Ctx) session.Handle {
	h, _ := c.Locals(localsHandle).(session.Handle)
	return h
}

func (s *Server) setSessionCookie(c *fiber.Ctx, h session.Handle) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    string(h),
		Path:     "/",
		MaxAge:   int(s.sessions.TTL() / time.Second),
		Secure:   s.config.SecureCookies,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		Secure:   s.config.SecureCookies,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func unauthenticated(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: msgUnauthenticated})
}

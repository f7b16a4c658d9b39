package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/docchat/pkg/auth"
	"github.com/papercomputeco/docchat/pkg/pipeline"
	"github.com/papercomputeco/docchat/pkg/session"
)

// Server is the docchat API server.
type Server struct {
	config   Config
	pipeline *pipeline.Pipeline
	sessions *session.Cache
	auth     *auth.Authenticator
	logger   *slog.Logger
	app      *fiber.App
}

// NewServer creates a new API server. The pipeline, session cache, and
// authenticator are owned by the caller and must outlive the server.
func NewServer(config Config, p *pipeline.Pipeline, sessions *session.Cache, authn *auth.Authenticator, logger *slog.Logger) (*Server, error) {
	if p == nil {
		return nil, errors.New("pipeline is required")
	}
	if sessions == nil {
		return nil, errors.New("session cache is required")
	}
	if authn == nil {
		return nil, errors.New("authenticator is required")
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultMaxUploadBytes
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             config.MaxUploadBytes,
	})

	s := &Server{
		config:   config,
		pipeline: p,
		sessions: sessions,
		auth:     authn,
		logger:   logger,
		app:      app,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Post("/auth/login", s.handleLogin)
	v1.Post("/auth/logout", s.requireSession, s.handleLogout)
	v1.Get("/auth/me", s.requireSession, s.handleMe)

	v1.Get("/documents", s.requireSession, s.handleListDocuments)
	v1.Post("/documents", s.requireSession, s.handleUploadDocument)
	v1.Delete("/documents/:id", s.requireSession, s.handleDeleteDocument)
	v1.Post("/documents/:id/ingest", s.requireSession, s.handleIngestDocument)

	v1.Post("/chat", s.requireSession, s.handleChat)
	v1.Get("/search", s.requireSession, s.handleSearch)

	return s, nil
}

// Handler exposes the server as a net/http handler.
func (s *Server) Handler() http.Handler {
	return adaptor.FiberApp(s.app)
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"secure_cookies", s.config.SecureCookies,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

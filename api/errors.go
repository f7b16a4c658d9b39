package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/docchat/pkg/errs"
	"github.com/papercomputeco/docchat/pkg/pipeline"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

const (
	msgUnauthenticated     = "authentication required"
	msgRetrievalDown       = "retrieval unavailable"
	msgUpstreamUnavailable = "upstream service unavailable"
	msgStoreUnavailable    = "storage unavailable"
	msgInternal            = "internal server error"
)

// statusFor maps an error kind to an HTTP status and a client-safe message.
// Messages for 5xx statuses never carry the underlying error text.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, pipeline.ErrUnsupportedType):
		return fiber.StatusUnsupportedMediaType, err.Error()
	case errors.Is(err, errs.ErrValidation):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, pipeline.ErrNoContext):
		return fiber.StatusNotFound, pipeline.ErrNoContext.Error()
	case errors.Is(err, errs.ErrNotFound):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, errs.ErrPartialIngestion):
		return fiber.StatusMultiStatus, err.Error()
	case errors.Is(err, pipeline.ErrQueueFull):
		return fiber.StatusServiceUnavailable, pipeline.ErrQueueFull.Error()
	case errors.Is(err, errs.ErrUpstreamUnavailable):
		return fiber.StatusServiceUnavailable, msgUpstreamUnavailable
	case errors.Is(err, errs.ErrStoreUnavailable):
		return fiber.StatusServiceUnavailable, msgStoreUnavailable
	}
	return fiber.StatusInternalServerError, msgInternal
}

// writeError responds with the status and message for err, logging
// server-side failures.
func (s *Server) writeError(c *fiber.Ctx, err error) error {
	status, msg := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"error", err,
		)
	}
	return c.Status(status).JSON(ErrorResponse{Error: msg})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg})
}

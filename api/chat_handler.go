package api

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/docchat/pkg/errs"
	"github.com/papercomputeco/docchat/pkg/llm"
)

// ChatRequest is the body of POST /v1/chat. The last user message is the
// question; the whole list is sent to the completer as history.
type ChatRequest struct {
	Messages []llm.Message `json:"messages"`
}

// handleChat handles POST /v1/chat. Retrieval runs before any byte of the
// response is written so its failures keep their status codes; the answer
// itself is streamed as plain text.
func (s *Server) handleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid chat request body")
	}

	question := llm.LastUserText(req.Messages)
	if question == "" {
		return badRequest(c, "messages must contain a user message")
	}

	ctx := c.UserContext()
	prompt, err := s.pipeline.Prepare(ctx, question, req.Messages)
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrUpstreamUnavailable), errors.Is(err, errs.ErrStoreUnavailable):
		s.logger.Error("retrieval failed", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: msgRetrievalDown})
	default:
		return s.writeError(c, err)
	}

	s.logger.Debug("answering question",
		"user_id", currentUser(c).ID,
		"sources", len(prompt.Sources),
	)

	// fasthttp drains the pipe reader as a chunked body, flushing after every
	// write, so deltas reach the client as the completer produces them.
	pr, pw := io.Pipe()
	go func() {
		if err := s.pipeline.Stream(ctx, prompt, pw); err != nil {
			s.logger.Error("completion failed mid-stream", "error", err)
			pw.CloseWithError(err)
			return
		}
		pw.Close()
	}()

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}


// Package ollama implements pkg/llm's Completer on Ollama's streaming chat API.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/papercomputeco/docchat/pkg/errs"
	"github.com/papercomputeco/docchat/pkg/llm"
	"github.com/papercomputeco/docchat/pkg/retry"
)

const (
	// DefaultModel is the default chat model.
	DefaultModel = "llama3.2"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"

	maxLineBytes = 1 << 20
)

// Config holds configuration for the Ollama completer.
type Config struct {
	BaseURL string
	Model   string

	// Temperature is passed as a model option when set.
	Temperature *float64
}

// Completer streams chat completions from Ollama.
type Completer struct {
	baseURL     string
	model       string
	temperature *float64
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewCompleter creates a completer. Streams are bounded only by the
// caller's context.
func NewCompleter(cfg Config, logger *slog.Logger) *Completer {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Completer{
		baseURL:     baseURL,
		model:       model,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{},
		logger:      logger,
	}
}

// Complete posts to /api/chat with streaming on and forwards every message
// delta until the final line.
func (c *Completer) Complete(ctx context.Context, system string, history []llm.Message, onDelta llm.DeltaFunc) error {
	stream := true
	body := chatRequest{
		Model:    c.model,
		Messages: make([]chatMessage, 0, len(history)+1),
		Stream:   &stream,
	}
	if c.temperature != nil {
		body.Options = &chatOptions{Temperature: c.temperature}
	}
	if system != "" {
		body.Messages = append(body.Messages, chatMessage{Role: llm.RoleSystem, Content: system})
	}
	for _, m := range history {
		body.Messages = append(body.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: marshaling request: %w", errs.ErrUpstreamUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("%w: creating request: %w", errs.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.Upstream("sending chat request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if !retry.RetryableStatus(resp.StatusCode) {
			return errs.Rejected("ollama returned status %d: %s", resp.StatusCode, string(b))
		}
		return fmt.Errorf("%w: ollama returned status %d: %s", errs.ErrUpstreamUnavailable, resp.StatusCode, string(b))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk chatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return fmt.Errorf("%w: decoding stream line: %w", errs.ErrUpstreamUnavailable, err)
		}
		if chunk.Error != "" {
			return fmt.Errorf("%w: ollama: %s", errs.ErrUpstreamUnavailable, chunk.Error)
		}

		if chunk.Message.Content != "" {
			if err := onDelta(chunk.Message.Content); err != nil {
				return err
			}
		}

		if chunk.Done {
			c.logger.Debug("completion finished",
				"model", chunk.Model,
				"done_reason", chunk.DoneReason,
				"eval_count", chunk.EvalCount,
			)
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errs.Upstream("reading chat stream", err)
	}
	return fmt.Errorf("%w: %w", errs.ErrUpstreamUnavailable, errors.New("stream ended before completion"))
}

// Close releases idle connections.
func (c *Completer) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

var _ llm.Completer = (*Completer)(nil)

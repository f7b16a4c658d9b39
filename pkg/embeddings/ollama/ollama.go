// Package ollama implements pkg/embeddings' Embedder client for Ollama's embedding APIs
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/papercomputeco/docchat/pkg/embeddings"
	"github.com/papercomputeco/docchat/pkg/errs"
	"github.com/papercomputeco/docchat/pkg/retry"
)

const (
	// DefaultEmbeddingModel is the default model used for embeddings.
	DefaultEmbeddingModel = "nomic-embed-text"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultDimensions matches DefaultEmbeddingModel.
	DefaultDimensions = 768

	// Task prefixes used by retrieval-tuned models (nomic-embed-text,
	// embeddinggemma) to tell documents from queries.
	documentPrefix = "search_document: "
	queryPrefix    = "search_query: "
)

// Embedder wraps Ollama's embedding API.
type Embedder struct {
	baseURL    string
	model      string
	dimensions uint
	prefixes   bool
	httpClient *http.Client
}

// EmbedderConfig holds configuration for the Ollama embedder.
type EmbedderConfig struct {
	// BaseURL is the Ollama API URL (e.g., "http://localhost:11434").
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Model is the embedding model to use (e.g., "nomic-embed-text", "embeddinggemma").
	// Defaults to DefaultEmbeddingModel if empty.
	Model string

	// Dimensions is the expected vector length. Responses of any other
	// length are rejected. Defaults to DefaultDimensions if zero.
	Dimensions uint

	// DisableTaskPrefix sends text as-is instead of prefixing it with the
	// role's task marker.
	DisableTaskPrefix bool

	// Timeout bounds a single request. Defaults to two minutes.
	Timeout time.Duration
}

// embedRequest is the request body for Ollama's embedding API.
type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse is the response from Ollama's embedding API.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewEmbedder creates a new embedder using Ollama's embedding API.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	dims := cfg.Dimensions
	if dims == 0 {
		dims = DefaultDimensions
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &Embedder{
		baseURL:    baseURL,
		model:      model,
		dimensions: dims,
		prefixes:   !cfg.DisableTaskPrefix,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string, role embeddings.Role) ([]float32, error) {
	reqBody := embedRequest{
		Model: e.model,
		Input: e.input(text, role),
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %w", errs.ErrUpstreamUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", errs.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, errs.Upstream("sending embed request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if !retry.RetryableStatus(resp.StatusCode) {
			return nil, errs.Rejected("ollama returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("%w: ollama returned status %d: %s", errs.ErrUpstreamUnavailable, resp.StatusCode, string(body))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", errs.ErrUpstreamUnavailable, err)
	}

	if len(embedResp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", errs.ErrUpstreamUnavailable)
	}

	vec := embedResp.Embeddings[0]
	if uint(len(vec)) != e.dimensions {
		return nil, errs.Rejected("model %s returned %d dimensions, expected %d",
			e.model, len(vec), e.dimensions)
	}

	return vec, nil
}

func (e *Embedder) input(text string, role embeddings.Role) string {
	if !e.prefixes {
		return text
	}
	if role == embeddings.RoleQuery {
		return queryPrefix + text
	}
	return documentPrefix + text
}

// Dimensions returns the configured vector length.
func (e *Embedder) Dimensions() uint {
	return e.dimensions
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}

// Ensure Embedder implements embeddings.Embedder
var _ embeddings.Embedder = (*Embedder)(nil)

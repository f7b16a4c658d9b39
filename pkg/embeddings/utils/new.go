// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/docchat/pkg/embeddings"
	"github.com/papercomputeco/docchat/pkg/embeddings/ollama"
	"github.com/papercomputeco/docchat/pkg/retry"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	Dimensions   uint

	// Retry wraps the embedder with backoff when MaxAttempts > 1.
	Retry retry.Policy

	Logger *slog.Logger
}

func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	var (
		e   embeddings.Embedder
		err error
	)

	switch o.ProviderType {
	case "ollama":
		e, err = ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: o.Dimensions,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
	if err != nil {
		return nil, err
	}

	if o.Retry.MaxAttempts > 1 {
		e = embeddings.NewRetrying(e, o.Retry, o.Logger)
	}

	return e, nil
}

package embeddings

import (
	"context"
	"log/slog"

	"github.com/papercomputeco/docchat/pkg/retry"
)

// Retrying wraps an Embedder and retries upstream failures with bounded
// exponential backoff.
type Retrying struct {
	next   Embedder
	policy retry.Policy
	logger *slog.Logger
}

// NewRetrying returns an Embedder that retries next according to policy.
func NewRetrying(next Embedder, policy retry.Policy, logger *slog.Logger) *Retrying {
	return &Retrying{
		next:   next,
		policy: policy,
		logger: logger,
	}
}

// Embed calls the wrapped embedder until it succeeds or the policy gives up.
func (r *Retrying) Embed(ctx context.Context, text string, role Role) ([]float32, error) {
	var out []float32

	p := r.policy
	p.OnRetry = func(attempt int, err error) {
		r.logger.Warn("embedding failed, retrying",
			"attempt", attempt,
			"role", role.String(),
			"error", err,
		)
	}

	err := retry.Do(ctx, p, func(ctx context.Context) error {
		vec, err := r.next.Embed(ctx, text, role)
		if err != nil {
			return err
		}
		out = vec
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Dimensions returns the wrapped embedder's dimensionality.
func (r *Retrying) Dimensions() uint {
	return r.next.Dimensions()
}

// Close closes the wrapped embedder.
func (r *Retrying) Close() error {
	return r.next.Close()
}

var _ Embedder = (*Retrying)(nil)

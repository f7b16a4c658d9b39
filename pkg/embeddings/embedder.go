// Package embeddings defines the Embedder used for both document chunks and
// search queries.
package embeddings

import "context"

// Role tells the embedding service what the text is used for. It may change
// the service's weighting but never the vector's dimensionality.
type Role int

const (
	// RoleDocument is used for chunks written to the vector index.
	RoleDocument Role = iota

	// RoleQuery is used for questions searched against the index.
	RoleQuery
)

func (r Role) String() string {
	switch r {
	case RoleDocument:
		return "document"
	case RoleQuery:
		return "query"
	default:
		return "unknown"
	}
}

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding. Failures carry
	// errs.ErrUpstreamUnavailable so callers can tell them apart from
	// "no results".
	Embed(ctx context.Context, text string, role Role) ([]float32, error)

	// Dimensions is the length of every vector this embedder returns.
	Dimensions() uint

	// Close releases any resources held by the embedder.
	Close() error
}

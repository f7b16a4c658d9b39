// Package vector provides the retrieval core: an index of chunk vectors that
// answers k-nearest-neighbor queries under a fixed distance metric.
package vector

import "context"

// Chunk is a bounded span of a parent document together with its embedding.
// Index values are contiguous per parent starting at 0.
type Chunk struct {
	ID       string
	ParentID string
	Content  string
	Index    int
	Vector   []float32
}

// Result is a chunk paired with its distance to the query vector.
type Result struct {
	Chunk

	// Distance is the Euclidean distance to the query (lower = closer).
	Distance float64
}

// Index stores chunk vectors and answers nearest-neighbor queries.
type Index interface {
	// Insert adds chunks to the index. Re-inserting an existing chunk ID
	// replaces it. Vectors whose length differs from the index dimension
	// are rejected with errs.ErrValidation before anything is written.
	Insert(ctx context.Context, chunks ...Chunk) error

	// DeleteByParent removes every chunk of the given parent. A concurrent
	// query sees either all of the parent's chunks or none of them.
	DeleteByParent(ctx context.Context, parentID string) error

	// Query returns at most k chunks ordered by ascending distance, ties
	// broken by insertion order. An empty index yields an empty result.
	// k <= 0 is rejected with errs.ErrValidation.
	Query(ctx context.Context, vector []float32, k int) ([]Result, error)

	// Close releases any resources held by the index.
	Close() error
}

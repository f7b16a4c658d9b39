package vector

import "github.com/papercomputeco/docchat/pkg/errs"

// ValidateChunks checks that every chunk has an ID, a parent, and a vector
// of the index dimension.
func ValidateChunks(dims uint, chunks []Chunk) error {
	for _, c := range chunks {
		if c.ID == "" {
			return errs.Validation("chunk has no id")
		}
		if c.ParentID == "" {
			return errs.Validation("chunk %s has no parent", c.ID)
		}
		if c.Index < 0 {
			return errs.Validation("chunk %s has negative index %d", c.ID, c.Index)
		}
		if uint(len(c.Vector)) != dims {
			return errs.Validation("chunk %s has %d dimensions, index expects %d", c.ID, len(c.Vector), dims)
		}
	}
	return nil
}

// ValidateQuery checks the query vector length and k.
func ValidateQuery(dims uint, vec []float32, k int) error {
	if k <= 0 {
		return errs.Validation("k must be positive, got %d", k)
	}
	if uint(len(vec)) != dims {
		return errs.Validation("query has %d dimensions, index expects %d", len(vec), dims)
	}
	return nil
}

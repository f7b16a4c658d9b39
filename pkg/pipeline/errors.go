package pipeline

import (
	"errors"
	"fmt"

	"github.com/papercomputeco/docchat/pkg/errs"
)

// Step names the ingestion stage an error came from.
type Step string

const (
	StepExtraction Step = "extraction"
	StepChunking   Step = "chunking"
	StepEmbedding  Step = "embedding"
	StepIndexing   Step = "indexing"
)

var (
	// ErrNoContext is returned when retrieval succeeds but finds nothing to
	// answer from. It is distinct from an unavailable embedder or index.
	ErrNoContext = errors.New("no relevant document context found")

	// ErrUnsupportedType is returned for uploads that are neither PDF nor
	// plain text. It also matches errs.ErrValidation.
	ErrUnsupportedType = errors.New("unsupported media type")

	// ErrQueueFull is returned when the ingestion queue cannot take another
	// document. The document is stored and marked failed.
	ErrQueueFull = errors.New("ingestion queue full")

	// ErrDocumentDeleted is returned by an ingestion whose document was
	// deleted before or while it ran. It also matches errs.ErrNotFound.
	ErrDocumentDeleted = fmt.Errorf("%w: document deleted during ingestion", errs.ErrNotFound)
)

// StepError reports which ingestion step failed.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

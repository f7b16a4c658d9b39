// Package errs defines the error kinds shared across docchat components.
//
// Low-level store and transport failures are wrapped into one of these kinds
// before they cross a component boundary, so callers branch with errors.Is
// and errors.As instead of inspecting driver errors.
package errs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrValidation is returned for bad input shape. It is always returned
	// before any side effect takes place.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced document, session, or chunk
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUpstreamUnavailable is returned when the embedding or completion
	// service cannot be reached. It is retryable.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrStoreUnavailable is returned when a backing store (cache, index,
	// metadata, blob) is down. It is fatal for the current request.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrPartialIngestion is the kind matched by *PartialIngestionError.
	ErrPartialIngestion = errors.New("partial ingestion")

	// ErrRejected marks an upstream reply that a retry will not change, such
	// as a 4xx status or a vector of the wrong length. It always travels
	// with ErrUpstreamUnavailable.
	ErrRejected = errors.New("rejected by upstream")
)

// PartialIngestionError reports that some chunks of a document were embedded
// and indexed while others were not. FailedIndices lets a retry be scoped to
// just the missing chunks.
type PartialIngestionError struct {
	DocumentID    string
	FailedIndices []int
	Total         int
}

func (e *PartialIngestionError) Error() string {
	idx := make([]string, len(e.FailedIndices))
	for i, n := range e.FailedIndices {
		idx[i] = strconv.Itoa(n)
	}

	return fmt.Sprintf("partial ingestion of document %s: %d of %d chunks failed [%s]",
		e.DocumentID, len(e.FailedIndices), e.Total, strings.Join(idx, ","))
}

// Unwrap lets errors.Is(err, ErrPartialIngestion) match.
func (e *PartialIngestionError) Unwrap() error {
	return ErrPartialIngestion
}

// Validation wraps a formatted message with ErrValidation.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Upstream wraps err with ErrUpstreamUnavailable unless it already carries
// a kind. The original error stays reachable through errors.Is, so context
// cancellation is still detectable by callers.
func Upstream(op string, err error) error {
	return wrapKind(ErrUpstreamUnavailable, op, err)
}

// Rejected returns an ErrUpstreamUnavailable error that is also ErrRejected,
// so retry loops give up on it at once.
func Rejected(format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrUpstreamUnavailable, ErrRejected, fmt.Sprintf(format, args...))
}

// Store wraps err with ErrStoreUnavailable unless it already carries a kind.
func Store(op string, err error) error {
	return wrapKind(ErrStoreUnavailable, op, err)
}

func wrapKind(kind error, op string, err error) error {
	if err == nil {
		return nil
	}

	if HasKind(err) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Errorf("%w: %s: %w", kind, op, err)
}

// HasKind reports whether err already carries one of the docchat error kinds.
func HasKind(err error) bool {
	for _, kind := range []error{
		ErrValidation,
		ErrNotFound,
		ErrUpstreamUnavailable,
		ErrStoreUnavailable,
		ErrPartialIngestion,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}

	return false
}

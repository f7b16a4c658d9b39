// Package llm defines the completion service used to answer questions from
// retrieved document context.
package llm

import "context"

// DeltaFunc receives each streamed piece of the completion in order.
// Returning an error stops the stream.
type DeltaFunc func(delta string) error

// Completer streams a chat completion.
type Completer interface {
	// Complete sends the system prompt and history and calls onDelta for
	// each generated piece. Transport and backend failures are wrapped
	// with errs.ErrUpstreamUnavailable.
	Complete(ctx context.Context, system string, history []Message, onDelta DeltaFunc) error

	// Close releases resources held by the completer.
	Close() error
}

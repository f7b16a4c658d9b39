package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/docchat/pkg/eventstream"
)

// RecordingPublisher keeps every published event.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.DocumentEvent
}

func (r *RecordingPublisher) Publish(_ context.Context, event *eventstream.DocumentEvent) error {
	if event == nil {
		return eventstream.ErrNilDocumentEvent
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns the event types published so far, in order.
func (r *RecordingPublisher) Events() []*eventstream.DocumentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*eventstream.DocumentEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *RecordingPublisher) Close() error {
	return nil
}

var _ eventstream.Publisher = (*RecordingPublisher)(nil)

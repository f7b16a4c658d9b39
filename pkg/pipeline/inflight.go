package pipeline

import (
	"context"
	"sync"
)

// ingestion is one running Ingest or Retry of a document.
type ingestion struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// inflight tracks running ingestions per document so a delete can stop
// them before removing the document's chunks.
type inflight struct {
	mu       sync.Mutex
	running  map[string]map[*ingestion]struct{}
	deleting map[string]int
}

func newInflight() *inflight {
	return &inflight{
		running:  make(map[string]map[*ingestion]struct{}),
		deleting: make(map[string]int),
	}
}

// begin registers an ingestion of docID. The returned context is cancelled
// with ErrDocumentDeleted when the document is deleted; end must be called
// once the ingestion has stopped writing to the index.
func (f *inflight) begin(ctx context.Context, docID string) (context.Context, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleting[docID] > 0 {
		return nil, nil, ErrDocumentDeleted
	}

	ctx, cancel := context.WithCancelCause(ctx)
	ing := &ingestion{cancel: cancel, done: make(chan struct{})}
	if f.running[docID] == nil {
		f.running[docID] = make(map[*ingestion]struct{})
	}
	f.running[docID][ing] = struct{}{}

	end := func() {
		f.mu.Lock()
		delete(f.running[docID], ing)
		if len(f.running[docID]) == 0 {
			delete(f.running, docID)
		}
		f.mu.Unlock()

		close(ing.done)
		cancel(nil)
	}
	return ctx, end, nil
}

// stop blocks new ingestions of docID, cancels the running ones and waits
// for them to finish. The returned func lifts the block.
func (f *inflight) stop(docID string) func() {
	f.mu.Lock()
	f.deleting[docID]++
	running := make([]*ingestion, 0, len(f.running[docID]))
	for ing := range f.running[docID] {
		running = append(running, ing)
	}
	f.mu.Unlock()

	for _, ing := range running {
		ing.cancel(ErrDocumentDeleted)
		<-ing.done
	}

	return func() {
		f.mu.Lock()
		if f.deleting[docID]--; f.deleting[docID] <= 0 {
			delete(f.deleting, docID)
		}
		f.mu.Unlock()
	}
}

package pipeline

import (
	"context"
	"errors"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/docchat/pkg/embeddings"
	"github.com/papercomputeco/docchat/pkg/errs"
	"github.com/papercomputeco/docchat/pkg/eventstream"
	"github.com/papercomputeco/docchat/pkg/storage"
	"github.com/papercomputeco/docchat/pkg/vector"
)

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	DocumentID string `json:"document_id"`

	// Total is the number of chunks the document splits into.
	Total int `json:"total"`

	// Attempted is the number of chunks this run embedded and indexed.
	Attempted int `json:"attempted"`

	// FailedIndices lists every chunk of the document that is not indexed
	// after this run, ascending.
	FailedIndices []int `json:"failed_indices,omitempty"`

	Status storage.Status `json:"status"`
}

type chunkFailure struct {
	index int
	step  Step
	err   error
}

// Ingest splits doc's text, embeds every chunk, and inserts the vectors.
// Chunks left over from a previous ingestion of doc are removed first.
//
// When every chunk fails the error is a *StepError. When some fail it is a
// *errs.PartialIngestionError listing their indices. The document status
// is updated in either case. Deleting doc while Ingest runs cancels it
// with ErrDocumentDeleted and leaves no chunks behind.
func (p *Pipeline) Ingest(ctx context.Context, doc *storage.Document) (*IngestReport, error) {
	ctx, end, err := p.begin(ctx, doc)
	if err != nil {
		return nil, err
	}
	defer end()

	pieces := p.splitter.Split(doc.TextContent)
	if len(pieces) == 0 {
		err := &StepError{Step: StepChunking, Err: errs.Validation("document %s has no text", doc.ID)}
		p.setStatus(ctx, doc, storage.StatusFailed, nil)
		return &IngestReport{DocumentID: doc.ID, Status: storage.StatusFailed}, err
	}

	if err := p.index.DeleteByParent(ctx, doc.ID); err != nil {
		p.setStatus(ctx, doc, storage.StatusFailed, nil)
		return &IngestReport{DocumentID: doc.ID, Total: len(pieces), Status: storage.StatusFailed},
			&StepError{Step: StepIndexing, Err: err}
	}

	all := make([]int, len(pieces))
	for i := range pieces {
		all[i] = i
	}

	failures := p.ingestChunks(ctx, doc.ID, pieces, all)
	return p.finish(ctx, doc, len(pieces), len(all), nil, failures)
}

// Retry re-embeds and re-inserts only the listed chunk indices of doc. An
// empty list retries doc.FailedChunks. Indices outside the document are
// rejected with errs.ErrValidation.
func (p *Pipeline) Retry(ctx context.Context, doc *storage.Document, indices []int) (*IngestReport, error) {
	if len(indices) == 0 {
		indices = doc.FailedChunks
	}

	pieces := p.splitter.Split(doc.TextContent)
	if len(pieces) == 0 {
		return nil, &StepError{Step: StepChunking, Err: errs.Validation("document %s has no text", doc.ID)}
	}

	indices = slices.Clone(indices)
	slices.Sort(indices)
	indices = slices.Compact(indices)
	for _, i := range indices {
		if i < 0 || i >= len(pieces) {
			return nil, errs.Validation("chunk index %d out of range [0, %d)", i, len(pieces))
		}
	}

	ctx, end, err := p.begin(ctx, doc)
	if err != nil {
		return nil, err
	}
	defer end()

	// Chunks failing before this run and not retried stay failed.
	var kept []int
	for _, i := range doc.FailedChunks {
		if !slices.Contains(indices, i) && i < len(pieces) {
			kept = append(kept, i)
		}
	}

	failures := p.ingestChunks(ctx, doc.ID, pieces, indices)
	return p.finish(ctx, doc, len(pieces), len(indices), kept, failures)
}

// begin registers an ingestion of doc and checks the document still
// exists, so a job queued before a delete never writes chunks after it.
func (p *Pipeline) begin(ctx context.Context, doc *storage.Document) (context.Context, func(), error) {
	ctx, end, err := p.inflight.begin(ctx, doc.ID)
	if err != nil {
		return nil, nil, err
	}

	if _, err := p.store.Get(ctx, doc.ID); err != nil {
		end()
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil, ErrDocumentDeleted
		}
		return nil, nil, err
	}
	return ctx, end, nil
}

// ingestChunks embeds and inserts the chunks at indices with bounded
// parallelism and returns the failures in index order.
func (p *Pipeline) ingestChunks(ctx context.Context, docID string, pieces []string, indices []int) []chunkFailure {
	var (
		mu       sync.Mutex
		failures []chunkFailure
	)

	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)

	for _, i := range indices {
		g.Go(func() error {
			step, err := p.ingestChunk(ctx, docID, i, pieces[i])
			if err != nil {
				p.logger.Warn("chunk ingestion failed",
					"document_id", docID,
					"chunk_index", i,
					"step", string(step),
					"error", err,
				)

				mu.Lock()
				failures = append(failures, chunkFailure{index: i, step: step, err: err})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(failures, func(a, b chunkFailure) int { return a.index - b.index })
	return failures
}

func (p *Pipeline) ingestChunk(ctx context.Context, docID string, index int, text string) (Step, error) {
	if err := ctx.Err(); err != nil {
		return StepEmbedding, err
	}

	vec, err := p.embedder.Embed(ctx, text, embeddings.RoleDocument)
	if err != nil {
		return StepEmbedding, err
	}
	if err := ctx.Err(); err != nil {
		return StepIndexing, err
	}

	err = p.index.Insert(ctx, vector.Chunk{
		ID:       ChunkID(docID, index),
		ParentID: docID,
		Content:  cleanContent(text),
		Index:    index,
		Vector:   vec,
	})
	if err != nil {
		return StepIndexing, err
	}

	return "", nil
}

// finish records the outcome of a run over attempted chunks. kept lists
// chunks that were already failed and not part of this run.
func (p *Pipeline) finish(ctx context.Context, doc *storage.Document, total, attempted int, kept []int, failures []chunkFailure) (*IngestReport, error) {
	if errors.Is(context.Cause(ctx), ErrDocumentDeleted) {
		return &IngestReport{DocumentID: doc.ID, Total: total, Attempted: attempted}, ErrDocumentDeleted
	}

	failed := slices.Clone(kept)
	for _, f := range failures {
		failed = append(failed, f.index)
	}
	slices.Sort(failed)

	status := storage.StatusReady
	switch {
	case len(failed) == total:
		status = storage.StatusFailed
	case len(failed) > 0:
		status = storage.StatusPartial
	}

	report := &IngestReport{
		DocumentID:    doc.ID,
		Total:         total,
		Attempted:     attempted,
		FailedIndices: failed,
		Status:        status,
	}

	if err := p.setStatus(ctx, doc, status, failed); err != nil {
		return report, err
	}

	p.logger.Info("document ingested",
		"document_id", doc.ID,
		"total", total,
		"attempted", attempted,
		"failed", len(failed),
		"status", string(status),
	)

	if status != storage.StatusFailed {
		event := eventstream.NewDocumentEvent(eventstream.EventTypeDocumentIngested, doc.ID, doc.OwnerID)
		event.ChunkCount = total - len(failed)
		event.FailedIndices = failed
		p.publish(ctx, event)
	}

	if err := ctx.Err(); err != nil && len(failures) > 0 {
		return report, err
	}

	switch status {
	case storage.StatusFailed:
		return report, &StepError{Step: failureStep(failures), Err: firstErr(failures)}
	case storage.StatusPartial:
		return report, &errs.PartialIngestionError{
			DocumentID:    doc.ID,
			FailedIndices: failed,
			Total:         total,
		}
	}
	return report, nil
}

// failureStep is indexing when every failure happened at insert time and
// embedding otherwise.
func failureStep(failures []chunkFailure) Step {
	if len(failures) == 0 {
		return StepEmbedding
	}
	for _, f := range failures {
		if f.step != StepIndexing {
			return StepEmbedding
		}
	}
	return StepIndexing
}

func firstErr(failures []chunkFailure) error {
	if len(failures) == 0 {
		return errors.New("all chunks previously failed")
	}
	return failures[0].err
}

// setStatus persists the status on doc and in the store. It runs even when
// ctx is cancelled so the record does not stay pending.
func (p *Pipeline) setStatus(ctx context.Context, doc *storage.Document, status storage.Status, failed []int) error {
	doc.Status = status
	doc.FailedChunks = failed

	if err := p.store.UpdateStatus(context.WithoutCancel(ctx), doc.ID, status, failed); err != nil {
		p.logger.Error("failed to update document status",
			"document_id", doc.ID,
			"status", string(status),
			"error", err,
		)
		return err
	}
	return nil
}

func (p *Pipeline) publish(ctx context.Context, event *eventstream.DocumentEvent) {
	if err := p.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		p.logger.Warn("failed to publish document event",
			"event_type", event.EventType,
			"document_id", event.DocumentID,
			"error", err,
		)
	}
}

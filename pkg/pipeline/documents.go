package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/docchat/pkg/blob"
	"github.com/papercomputeco/docchat/pkg/errs"
	"github.com/papercomputeco/docchat/pkg/eventstream"
	"github.com/papercomputeco/docchat/pkg/extract"
	"github.com/papercomputeco/docchat/pkg/storage"
)

// Upload validates and extracts the file, stores the original bytes and a
// pending metadata record, and hands the document to ingestion. With
// background workers the returned document is still pending; without them
// ingestion runs before Upload returns and its error is returned alongside
// the stored document.
func (p *Pipeline) Upload(ctx context.Context, ownerID, fileName, contentType string, data []byte) (*storage.Document, error) {
	if p.blobs == nil {
		return nil, errors.New("pipeline has no blob store")
	}
	if ownerID == "" {
		return nil, errs.Validation("owner is required")
	}
	if fileName == "" {
		return nil, errs.Validation("file name is required")
	}
	if len(data) == 0 {
		return nil, errs.Validation("file is empty")
	}
	if !extract.Supported(contentType) {
		return nil, fmt.Errorf("%w: %w: %q", errs.ErrValidation, ErrUnsupportedType, contentType)
	}

	text, err := extract.Extract(ctx, contentType, data)
	if err != nil {
		return nil, &StepError{Step: StepExtraction, Err: err}
	}

	key := blob.Key(ownerID, fileName)
	if err := p.blobs.Put(ctx, key, data); err != nil {
		return nil, err
	}

	doc := &storage.Document{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		FileName:    fileName,
		MimeType:    extract.MediaType(contentType),
		UploadedAt:  time.Now().UTC(),
		StorageKey:  key,
		TextContent: text,
		Status:      storage.StatusPending,
	}

	if err := p.store.Put(ctx, doc); err != nil {
		if derr := p.blobs.Delete(context.WithoutCancel(ctx), key); derr != nil {
			p.logger.Error("failed to remove blob after metadata failure",
				"storage_key", key,
				"error", derr,
			)
		}
		return nil, err
	}

	p.logger.Info("document uploaded",
		"document_id", doc.ID,
		"owner_id", ownerID,
		"mime_type", doc.MimeType,
		"bytes", len(data),
	)

	if p.pool == nil {
		_, err := p.Ingest(ctx, doc)
		return doc, err
	}

	queued := *doc
	if !p.pool.Enqueue(Job{Document: &queued}) {
		p.setStatus(ctx, doc, storage.StatusFailed, nil)
		return doc, ErrQueueFull
	}
	return doc, nil
}

// GetDocument returns the owner's document. Documents of other owners are
// reported as not found.
func (p *Pipeline) GetDocument(ctx context.Context, ownerID, docID string) (*storage.Document, error) {
	doc, err := p.store.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, storage.NotFoundError{ID: docID}
	}
	return doc, nil
}

// ListDocuments returns the owner's documents, newest first.
func (p *Pipeline) ListDocuments(ctx context.Context, ownerID string) ([]*storage.Document, error) {
	return p.store.ListByOwner(ctx, ownerID)
}

// Reingest runs ingestion for the owner's document. With indices it
// retries only those chunks, otherwise it re-ingests the whole document.
func (p *Pipeline) Reingest(ctx context.Context, ownerID, docID string, indices []int) (*IngestReport, error) {
	doc, err := p.GetDocument(ctx, ownerID, docID)
	if err != nil {
		return nil, err
	}
	if len(indices) > 0 {
		return p.Retry(ctx, doc, indices)
	}
	return p.Ingest(ctx, doc)
}

// DeleteDocument removes the owner's document with its chunks and blob.
// Running ingestions of the document are cancelled and awaited first. Chunks
// are removed before the record so a failed delete never leaves retrievable
// chunks without a document.
func (p *Pipeline) DeleteDocument(ctx context.Context, ownerID, docID string) error {
	doc, err := p.GetDocument(ctx, ownerID, docID)
	if err != nil {
		return err
	}

	release := p.inflight.stop(doc.ID)
	defer release()

	if err := p.index.DeleteByParent(ctx, doc.ID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	if err := p.store.Delete(ctx, doc.ID); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	if p.blobs != nil && doc.StorageKey != "" {
		if err := p.blobs.Delete(ctx, doc.StorageKey); err != nil {
			p.logger.Warn("failed to delete blob",
				"document_id", doc.ID,
				"storage_key", doc.StorageKey,
				"error", err,
			)
		}
	}

	p.logger.Info("document deleted", "document_id", doc.ID, "owner_id", ownerID)
	p.publish(ctx, eventstream.NewDocumentEvent(eventstream.EventTypeDocumentDeleted, doc.ID, ownerID))
	return nil
}

// Package storage persists document metadata.
package storage

import "context"

// Driver defines the interface for persisting and retrieving document
// metadata in a storage backend.
type Driver interface {
	// Put stores a document, replacing any record with the same ID.
	Put(ctx context.Context, doc *Document) error

	// Get retrieves a document by its ID.
	Get(ctx context.Context, id string) (*Document, error)

	// ListByOwner returns the owner's documents, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*Document, error)

	// UpdateStatus sets the ingestion status and failed chunk indices.
	UpdateStatus(ctx context.Context, id string, status Status, failedChunks []int) error

	// Delete removes a document record.
	Delete(ctx context.Context, id string) error

	// Close closes the store and releases any resources.
	Close() error
}

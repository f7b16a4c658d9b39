// Package inmemory provides a map-backed document store.
package inmemory

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/papercomputeco/docchat/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	mu   sync.RWMutex
	docs map[string]*storage.Document
}

// NewDriver creates a new in-memory store.
func NewDriver() *Driver {
	return &Driver{
		docs: make(map[string]*storage.Document),
	}
}

func clone(d *storage.Document) *storage.Document {
	c := *d
	c.FailedChunks = slices.Clone(d.FailedChunks)
	return &c
}

// Put stores a copy of doc.
func (s *Driver) Put(_ context.Context, doc *storage.Document) error {
	if doc == nil {
		return errors.New("cannot store nil document")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[doc.ID] = clone(doc)
	return nil
}

func (s *Driver) Get(_ context.Context, id string) (*storage.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	return clone(doc), nil
}

func (s *Driver) ListByOwner(_ context.Context, ownerID string) ([]*storage.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*storage.Document{}
	for _, doc := range s.docs {
		if doc.OwnerID == ownerID {
			result = append(result, clone(doc))
		}
	}

	slices.SortFunc(result, func(a, b *storage.Document) int {
		if c := b.UploadedAt.Compare(a.UploadedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	return result, nil
}

func (s *Driver) UpdateStatus(_ context.Context, id string, status storage.Status, failedChunks []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return storage.NotFoundError{ID: id}
	}

	doc.Status = status
	doc.FailedChunks = slices.Clone(failedChunks)
	return nil
}

func (s *Driver) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return storage.NotFoundError{ID: id}
	}

	delete(s.docs, id)
	return nil
}

// Close is a no-op.
func (s *Driver) Close() error {
	return nil
}

var _ storage.Driver = (*Driver)(nil)

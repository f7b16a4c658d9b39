// Package inmemory provides an exact brute-force vector index held in memory.
package inmemory

import (
	"context"
	"sync"

	"github.com/papercomputeco/docchat/pkg/vector"
)

type entry struct {
	chunk vector.Chunk
	seq   int64
}

// Index is a brute-force vector.Index. Queries scan every stored vector.
type Index struct {
	mu       sync.RWMutex
	dims     uint
	entries  map[string]*entry
	byParent map[string]map[string]struct{}
	nextSeq  int64
}

// NewIndex creates an empty index for vectors of the given dimension.
func NewIndex(dims uint) *Index {
	return &Index{
		dims:     dims,
		entries:  make(map[string]*entry),
		byParent: make(map[string]map[string]struct{}),
	}
}

// Insert adds or replaces chunks. A replaced chunk keeps its original
// insertion sequence.
func (i *Index) Insert(ctx context.Context, chunks ...vector.Chunk) error {
	if err := vector.ValidateChunks(i.dims, chunks); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	for _, c := range chunks {
		c.Vector = append([]float32(nil), c.Vector...)

		if existing, ok := i.entries[c.ID]; ok {
			if existing.chunk.ParentID != c.ParentID {
				i.unlinkParent(existing.chunk.ParentID, c.ID)
			}
			existing.chunk = c
			i.linkParent(c.ParentID, c.ID)
			continue
		}

		i.nextSeq++
		i.entries[c.ID] = &entry{chunk: c, seq: i.nextSeq}
		i.linkParent(c.ParentID, c.ID)
	}

	return nil
}

// DeleteByParent removes all chunks of parentID under the write lock, so
// queries observe the parent either fully present or fully gone.
func (i *Index) DeleteByParent(ctx context.Context, parentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	for id := range i.byParent[parentID] {
		delete(i.entries, id)
	}
	delete(i.byParent, parentID)

	return nil
}

// Query scans every stored vector and returns the k closest.
func (i *Index) Query(ctx context.Context, vec []float32, k int) ([]vector.Result, error) {
	if err := vector.ValidateQuery(i.dims, vec, k); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	i.mu.RLock()
	ranked := make([]vector.Ranked, 0, len(i.entries))
	for _, e := range i.entries {
		ranked = append(ranked, vector.Ranked{
			Result: vector.Result{
				Chunk:    e.chunk,
				Distance: vector.L2Distance(vec, e.chunk.Vector),
			},
			Seq: e.seq,
		})
	}
	i.mu.RUnlock()

	return vector.SortRanked(ranked, k), nil
}

// Len returns the number of stored chunks.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

// Close is a no-op.
func (i *Index) Close() error {
	return nil
}

func (i *Index) linkParent(parentID, id string) {
	ids, ok := i.byParent[parentID]
	if !ok {
		ids = make(map[string]struct{})
		i.byParent[parentID] = ids
	}
	ids[id] = struct{}{}
}

func (i *Index) unlinkParent(parentID, id string) {
	ids := i.byParent[parentID]
	delete(ids, id)
	if len(ids) == 0 {
		delete(i.byParent, parentID)
	}
}

var _ vector.Index = (*Index)(nil)

// Package pipeline orchestrates document ingestion and question answering:
// extraction, chunking, embedding, indexing, retrieval, context assembly,
// and completion.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/papercomputeco/docchat/pkg/blob"
	"github.com/papercomputeco/docchat/pkg/chunker"
	"github.com/papercomputeco/docchat/pkg/embeddings"
	"github.com/papercomputeco/docchat/pkg/eventstream"
	"github.com/papercomputeco/docchat/pkg/eventstream/nop"
	"github.com/papercomputeco/docchat/pkg/llm"
	"github.com/papercomputeco/docchat/pkg/storage"
	"github.com/papercomputeco/docchat/pkg/vector"
)

const (
	// DefaultConcurrency bounds parallel embedding calls per document.
	DefaultConcurrency = 4

	// DefaultTopK is the number of chunks retrieved per question.
	DefaultTopK = 5

	// ContextSeparator joins retrieved chunk contents.
	ContextSeparator = "\n---\n"
)

// chunkNamespace derives stable chunk IDs so re-ingesting a chunk index
// replaces the previous vector.
var chunkNamespace = uuid.MustParse("0b6f3f5e-5c1d-4b4e-a2f1-7d9c3e8a6b10")

// Config wires the pipeline's collaborators.
type Config struct {
	Splitter *chunker.Splitter
	Embedder embeddings.Embedder
	Index    vector.Index
	Store    storage.Driver

	// Blobs is required for Upload and DeleteDocument.
	Blobs *blob.Store

	// Completer is required for Answer.
	Completer llm.Completer

	// Publisher receives document events. Defaults to a no-op publisher.
	Publisher eventstream.Publisher

	// Concurrency bounds parallel embedding calls. Defaults to DefaultConcurrency.
	Concurrency uint

	// TopK is the default retrieval size. Defaults to DefaultTopK.
	TopK uint

	// Workers is the number of background ingestion workers. Zero makes
	// Upload ingest synchronously.
	Workers uint

	// QueueSize bounds the background ingestion queue.
	QueueSize uint

	Logger *slog.Logger
}

// Pipeline runs ingestion and retrieval over the configured collaborators.
type Pipeline struct {
	splitter    *chunker.Splitter
	embedder    embeddings.Embedder
	index       vector.Index
	store       storage.Driver
	blobs       *blob.Store
	completer   llm.Completer
	publisher   eventstream.Publisher
	concurrency int
	topK        int
	pool        *Pool
	inflight    *inflight
	logger      *slog.Logger
}

// New validates c and starts the ingestion workers when c.Workers > 0.
func New(c *Config) (*Pipeline, error) {
	if c.Splitter == nil || c.Embedder == nil || c.Index == nil || c.Store == nil {
		return nil, errors.New("pipeline requires a splitter, embedder, index and store")
	}
	if c.Logger == nil {
		return nil, errors.New("pipeline requires a logger")
	}

	p := &Pipeline{
		splitter:    c.Splitter,
		embedder:    c.Embedder,
		index:       c.Index,
		store:       c.Store,
		blobs:       c.Blobs,
		completer:   c.Completer,
		publisher:   c.Publisher,
		concurrency: DefaultConcurrency,
		topK:        DefaultTopK,
		inflight:    newInflight(),
		logger:      c.Logger,
	}
	if p.publisher == nil {
		p.publisher = nop.NewPublisher()
	}
	if c.Concurrency > 0 {
		p.concurrency = int(c.Concurrency)
	}
	if c.TopK > 0 {
		p.topK = int(c.TopK)
	}

	if c.Workers > 0 {
		pool, err := NewPool(&PoolConfig{
			Ingester:   p,
			NumWorkers: c.Workers,
			QueueSize:  c.QueueSize,
			Logger:     c.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("starting ingestion workers: %w", err)
		}
		p.pool = pool
	}

	return p, nil
}

// TopK is the default number of chunks retrieved per question.
func (p *Pipeline) TopK() int {
	return p.topK
}

// Close drains the ingestion queue. It does not close the collaborators.
func (p *Pipeline) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// ChunkID is the vector index ID of a document's chunk.
func ChunkID(documentID string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(documentID+"/"+strconv.Itoa(index))).String()
}

// cleanContent drops control characters other than line breaks and tabs.
func cleanContent(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)
}

package pipeline_test

import (
	"context"
	"errors"
	"os"

	. "github.com/onsi/gomega"
	"github.com/spf13/afero"

	"github.com/papercomputeco/docchat/pkg/blob"
	"github.com/papercomputeco/docchat/pkg/chunker"
	"github.com/papercomputeco/docchat/pkg/embeddings"
	"github.com/papercomputeco/docchat/pkg/logger"
	"github.com/papercomputeco/docchat/pkg/pipeline"
	"github.com/papercomputeco/docchat/pkg/storage"
	"github.com/papercomputeco/docchat/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/docchat/pkg/utils/test"
	"github.com/papercomputeco/docchat/pkg/vector"
	vectormem "github.com/papercomputeco/docchat/pkg/vector/inmemory"
)

const (
	testDims = 8

	// testText splits into four chunks at size 20 with no overlap.
	testText = "alpha one two three bravo four five six charlie seven eight delta nine ten"
)

type harness struct {
	fs        afero.Fs
	embedder  *testutils.MockEmbedder
	index     *vectormem.Index
	store     *inmemory.Driver
	completer *testutils.MockCompleter
	events    *testutils.RecordingPublisher
	splitter  *chunker.Splitter
	cfg       *pipeline.Config
}

func newHarness() *harness {
	splitter, err := chunker.New(chunker.WithChunkSize(20), chunker.WithOverlap(0))
	Expect(err).NotTo(HaveOccurred())

	h := &harness{
		fs:        afero.NewMemMapFs(),
		embedder:  testutils.NewMockEmbedder(testDims),
		index:     vectormem.NewIndex(testDims),
		store:     inmemory.NewDriver(),
		completer: testutils.NewMockCompleter("The answer", " is 42."),
		events:    &testutils.RecordingPublisher{},
		splitter:  splitter,
	}

	h.cfg = &pipeline.Config{
		Splitter:    splitter,
		Embedder:    h.embedder,
		Index:       h.index,
		Store:       h.store,
		Blobs:       blob.NewStore(h.fs, logger.Nop()),
		Completer:   h.completer,
		Publisher:   h.events,
		Concurrency: 2,
		TopK:        3,
		Logger:      logger.Nop(),
	}
	return h
}

func (h *harness) pipeline() *pipeline.Pipeline {
	p, err := pipeline.New(h.cfg)
	Expect(err).NotTo(HaveOccurred())
	return p
}

func (h *harness) chunks() []string {
	return h.splitter.Split(testText)
}

// putDocument stores a pending document with testText.
func (h *harness) putDocument(ctx context.Context, id, owner string) *storage.Document {
	doc := testutils.NewTestDocument(id, owner, 0)
	doc.TextContent = testText
	Expect(h.store.Put(ctx, doc)).To(Succeed())
	return doc
}

// blobCount counts stored blobs. Blob keys are relative, so the walk
// starts at "." rather than "/".
func (h *harness) blobCount() int {
	n := 0
	Expect(afero.Walk(h.fs, ".", func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			n++
		}
		return err
	})).To(Succeed())
	return n
}

func (h *harness) chunksOf(ctx context.Context, parent string) []vector.Result {
	results, err := h.index.Query(ctx, make([]float32, testDims), 100)
	Expect(err).NotTo(HaveOccurred())

	var out []vector.Result
	for _, r := range results {
		if r.ParentID == parent {
			out = append(out, r)
		}
	}
	return out
}

var errIndexDown = errors.New("index down")

// gatedEmbedder blocks every Embed until the gate is closed or the
// context is cancelled. started receives once per Embed call.
type gatedEmbedder struct {
	*testutils.MockEmbedder
	started chan struct{}
	gate    chan struct{}
}

func newGatedEmbedder(inner *testutils.MockEmbedder) *gatedEmbedder {
	return &gatedEmbedder{
		MockEmbedder: inner,
		started:      make(chan struct{}, 16),
		gate:         make(chan struct{}),
	}
}

func (g *gatedEmbedder) Embed(ctx context.Context, text string, role embeddings.Role) ([]float32, error) {
	select {
	case g.started <- struct{}{}:
	default:
	}

	select {
	case <-g.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.MockEmbedder.Embed(ctx, text, role)
}

// failingIndex fails every insert.
type failingIndex struct {
	vector.Index
}

func (failingIndex) Insert(context.Context, ...vector.Chunk) error {
	return errIndexDown
}

// failingPutStore fails every Put.
type failingPutStore struct {
	*inmemory.Driver
}

func (failingPutStore) Put(context.Context, *storage.Document) error {
	return errors.New("metadata store down")
}

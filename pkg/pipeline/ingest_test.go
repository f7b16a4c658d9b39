package pipeline_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/docchat/pkg/embeddings"
	"github.com/papercomputeco/docchat/pkg/errs"
	"github.com/papercomputeco/docchat/pkg/eventstream"
	"github.com/papercomputeco/docchat/pkg/pipeline"
	"github.com/papercomputeco/docchat/pkg/storage"
)

var _ = Describe("Ingest", func() {
	var (
		ctx context.Context
		h   *harness
	)

	BeforeEach(func() {
		ctx = context.Background()
		h = newHarness()
	})

	It("splits the fixture into several chunks", func() {
		Expect(len(h.chunks())).To(BeNumerically(">=", 3))
	})

	It("indexes every chunk and marks the document ready", func() {
		p := h.pipeline()
		doc := h.putDocument(ctx, "d1", "alice")

		report, err := p.Ingest(ctx, doc)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Total).To(Equal(len(h.chunks())))
		Expect(report.FailedIndices).To(BeEmpty())
		Expect(report.Status).To(Equal(storage.StatusReady))

		stored, err := h.store.Get(ctx, "d1")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Status).To(Equal(storage.StatusReady))

		indexed := h.chunksOf(ctx, "d1")
		Expect(indexed).To(HaveLen(len(h.chunks())))
		for _, r := range indexed {
			Expect(r.ID).To(Equal(pipeline.ChunkID("d1", r.Index)))
			Expect(r.Content).To(Equal(h.chunks()[r.Index]))
		}

		for _, c := range h.embedder.Calls {
			Expect(c.Role).To(Equal(embeddings.RoleDocument))
		}

		events := h.events.Events()
		Expect(events).To(HaveLen(1))
		Expect(events[0].EventType).To(Equal(eventstream.EventTypeDocumentIngested))
		Expect(events[0].ChunkCount).To(Equal(len(h.chunks())))
	})

	It("reports partial ingestion with the failed indices", func() {
		p := h.pipeline()
		doc := h.putDocument(ctx, "d1", "alice")
		h.embedder.SetFail(h.chunks()[1], true)

		report, err := p.Ingest(ctx, doc)

		var partial *errs.PartialIngestionError
		Expect(errors.As(err, &partial)).To(BeTrue())
		Expect(partial.FailedIndices).To(Equal([]int{1}))
		Expect(partial.Total).To(Equal(len(h.chunks())))
		Expect(errors.Is(err, errs.ErrPartialIngestion)).To(BeTrue())

		Expect(report.Status).To(Equal(storage.StatusPartial))
		Expect(h.chunksOf(ctx, "d1")).To(HaveLen(len(h.chunks()) - 1))

		stored, err := h.store.Get(ctx, "d1")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Status).To(Equal(storage.StatusPartial))
		Expect(stored.FailedChunks).To(Equal([]int{1}))
	})

	It("fails at the embedding step when every chunk fails", func() {
		p := h.pipeline()
		doc := h.putDocument(ctx, "d1", "alice")
		for _, c := range h.chunks() {
			h.embedder.SetFail(c, true)
		}

		report, err := p.Ingest(ctx, doc)

		var stepErr *pipeline.StepError
		Expect(errors.As(err, &stepErr)).To(BeTrue())
		Expect(stepErr.Step).To(Equal(pipeline.StepEmbedding))
		Expect(errors.Is(err, errs.ErrUpstreamUnavailable)).To(BeTrue())
		Expect(report.Status).To(Equal(storage.StatusFailed))
		Expect(h.events.Events()).To(BeEmpty())

		stored, err := h.store.Get(ctx, "d1")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Status).To(Equal(storage.StatusFailed))
	})

	It("fails at the indexing step when inserts fail", func() {
		h.cfg.Index = failingIndex{Index: h.index}
		p := h.pipeline()
		doc := h.putDocument(ctx, "d1", "alice")

		_, err := p.Ingest(ctx, doc)

		var stepErr *pipeline.StepError
		Expect(errors.As(err, &stepErr)).To(BeTrue())
		Expect(stepErr.Step).To(Equal(pipeline.StepIndexing))
		Expect(errors.Is(err, errIndexDown)).To(BeTrue())
	})

	It("fails at the chunking step for empty text", func() {
		p := h.pipeline()
		doc := h.putDocument(ctx, "d1", "alice")
		doc.TextContent = ""

		_, err := p.Ingest(ctx, doc)

		var stepErr *pipeline.StepError
		Expect(errors.As(err, &stepErr)).To(BeTrue())
		Expect(stepErr.Step).To(Equal(pipeline.StepChunking))
		Expect(errors.Is(err, errs.ErrValidation)).To(BeTrue())
	})

	It("replaces the chunks of a previous ingestion", func() {
		p := h.pipeline()
		doc := h.putDocument(ctx, "d1", "alice")

		_, err := p.Ingest(ctx, doc)
		Expect(err).NotTo(HaveOccurred())

		doc.TextContent = "short"
		_, err = p.Ingest(ctx, doc)
		Expect(err).NotTo(HaveOccurred())

		indexed := h.chunksOf(ctx, "d1")
		Expect(indexed).To(HaveLen(1))
		Expect(indexed[0].Content).To(Equal("short"))
	})

	It("drops control characters from stored chunk content", func() {
		p := h.pipeline()
		doc := h.putDocument(ctx, "d1", "alice")
		doc.TextContent = "bell\x07 and\ttab"

		_, err := p.Ingest(ctx, doc)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.chunksOf(ctx, "d1")[0].Content).To(Equal("bell and\ttab"))
	})

	It("indexes nothing for a document no longer in the store", func() {
		p := h.pipeline()
		doc := h.putDocument(ctx, "d1", "alice")
		Expect(h.store.Delete(ctx, "d1")).To(Succeed())

		_, err := p.Ingest(ctx, doc)
		Expect(errors.Is(err, pipeline.ErrDocumentDeleted)).To(BeTrue())
		Expect(errors.Is(err, errs.ErrNotFound)).To(BeTrue())
		Expect(h.chunksOf(ctx, "d1")).To(BeEmpty())
		Expect(h.embedder.CallCount()).To(BeZero())
	})
})

var _ = Describe("Retry", func() {
	var (
		ctx context.Context
		h   *harness
		p   *pipeline.Pipeline
		doc *storage.Document
	)

	BeforeEach(func() {
		ctx = context.Background()
		h = newHarness()
		p = h.pipeline()
		doc = h.putDocument(ctx, "d1", "alice")

		h.embedder.SetFail(h.chunks()[0], true)
		h.embedder.SetFail(h.chunks()[2], true)
		_, err := p.Ingest(ctx, doc)
		Expect(errors.Is(err, errs.ErrPartialIngestion)).To(BeTrue())
		Expect(doc.FailedChunks).To(Equal([]int{0, 2}))
	})

	It("re-embeds only the failed chunks", func() {
		h.embedder.SetFail(h.chunks()[0], false)
		h.embedder.SetFail(h.chunks()[2], false)
		before := h.embedder.CallCount()

		report, err := p.Retry(ctx, doc, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Attempted).To(Equal(2))
		Expect(report.Status).To(Equal(storage.StatusReady))
		Expect(h.embedder.CallCount() - before).To(Equal(2))
		Expect(h.chunksOf(ctx, "d1")).To(HaveLen(len(h.chunks())))

		stored, err := h.store.Get(ctx, "d1")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Status).To(Equal(storage.StatusReady))
		Expect(stored.FailedChunks).To(BeEmpty())
	})

	It("keeps chunks that were not retried in the failed set", func() {
		h.embedder.SetFail(h.chunks()[0], false)

		report, err := p.Retry(ctx, doc, []int{0})

		var partial *errs.PartialIngestionError
		Expect(errors.As(err, &partial)).To(BeTrue())
		Expect(partial.FailedIndices).To(Equal([]int{2}))
		Expect(report.Status).To(Equal(storage.StatusPartial))
	})

	It("rejects indices outside the document", func() {
		_, err := p.Retry(ctx, doc, []int{len(h.chunks())})
		Expect(errors.Is(err, errs.ErrValidation)).To(BeTrue())

		_, err = p.Retry(ctx, doc, []int{-1})
		Expect(errors.Is(err, errs.ErrValidation)).To(BeTrue())
	})
})

package pipeline_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/docchat/pkg/errs"
	"github.com/papercomputeco/docchat/pkg/eventstream"
	"github.com/papercomputeco/docchat/pkg/pipeline"
	"github.com/papercomputeco/docchat/pkg/storage"
)

var _ = Describe("Documents", func() {
	var (
		ctx context.Context
		h   *harness
	)

	BeforeEach(func() {
		ctx = context.Background()
		h = newHarness()
	})

	Describe("Upload", func() {
		It("stores the blob and metadata and ingests synchronously without workers", func() {
			p := h.pipeline()

			doc, err := p.Upload(ctx, "alice", "notes.txt", "text/plain; charset=utf-8", []byte(testText))
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.OwnerID).To(Equal("alice"))
			Expect(doc.MimeType).To(Equal("text/plain"))
			Expect(doc.StorageKey).To(HavePrefix("user-alice/"))
			Expect(doc.StorageKey).To(HaveSuffix("-notes.txt"))
			Expect(doc.Status).To(Equal(storage.StatusReady))

			stored, err := h.store.Get(ctx, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.TextContent).To(Equal(testText))
			Expect(stored.Status).To(Equal(storage.StatusReady))

			Expect(h.blobCount()).To(Equal(1))
			Expect(h.chunksOf(ctx, doc.ID)).To(HaveLen(len(h.chunks())))
		})

		It("ingests in the background with workers", func() {
			h.cfg.Workers = 1
			h.cfg.QueueSize = 4
			p := h.pipeline()

			doc, err := p.Upload(ctx, "alice", "notes.txt", "text/plain", []byte(testText))
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Status).To(Equal(storage.StatusPending))

			p.Close()

			stored, err := h.store.Get(ctx, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(storage.StatusReady))
		})

		It("rejects unsupported media types before storing anything", func() {
			p := h.pipeline()

			_, err := p.Upload(ctx, "alice", "image.png", "image/png", []byte{1, 2, 3})
			Expect(errors.Is(err, pipeline.ErrUnsupportedType)).To(BeTrue())
			Expect(errors.Is(err, errs.ErrValidation)).To(BeTrue())
			Expect(h.blobCount()).To(BeZero())
		})

		DescribeTable("validates the request",
			func(owner, name string, data []byte) {
				_, err := h.pipeline().Upload(ctx, owner, name, "text/plain", data)
				Expect(errors.Is(err, errs.ErrValidation)).To(BeTrue())
			},
			Entry("missing owner", "", "a.txt", []byte("x")),
			Entry("missing name", "alice", "", []byte("x")),
			Entry("empty file", "alice", "a.txt", []byte{}),
		)

		It("reports extraction failures by step", func() {
			_, err := h.pipeline().Upload(ctx, "alice", "bad.pdf", "application/pdf", []byte("not a pdf"))

			var stepErr *pipeline.StepError
			Expect(errors.As(err, &stepErr)).To(BeTrue())
			Expect(stepErr.Step).To(Equal(pipeline.StepExtraction))
			Expect(h.blobCount()).To(BeZero())
		})

		It("removes the blob when the metadata write fails", func() {
			h.cfg.Store = failingPutStore{Driver: h.store}
			p := h.pipeline()

			_, err := p.Upload(ctx, "alice", "notes.txt", "text/plain", []byte(testText))
			Expect(err).To(HaveOccurred())
			Expect(h.blobCount()).To(BeZero())
		})
	})

	Describe("DeleteDocument", func() {
		var (
			p   *pipeline.Pipeline
			doc *storage.Document
		)

		BeforeEach(func() {
			p = h.pipeline()
			var err error
			doc, err = p.Upload(ctx, "alice", "notes.txt", "text/plain", []byte(testText))
			Expect(err).NotTo(HaveOccurred())
		})

		It("cascades to chunks and the blob", func() {
			Expect(p.DeleteDocument(ctx, "alice", doc.ID)).To(Succeed())

			Expect(h.chunksOf(ctx, doc.ID)).To(BeEmpty())
			Expect(h.blobCount()).To(BeZero())

			_, err := h.store.Get(ctx, doc.ID)
			Expect(errors.Is(err, errs.ErrNotFound)).To(BeTrue())

			events := h.events.Events()
			Expect(events[len(events)-1].EventType).To(Equal(eventstream.EventTypeDocumentDeleted))
		})

		It("hides other owners' documents", func() {
			err := p.DeleteDocument(ctx, "mallory", doc.ID)
			Expect(errors.Is(err, errs.ErrNotFound)).To(BeTrue())
			Expect(h.chunksOf(ctx, doc.ID)).NotTo(BeEmpty())
		})

		It("reports unknown documents as not found", func() {
			err := p.DeleteDocument(ctx, "alice", "missing")
			Expect(errors.Is(err, errs.ErrNotFound)).To(BeTrue())
		})

		Context("while the document is ingesting in the background", func() {
			var gated *gatedEmbedder

			BeforeEach(func() {
				gated = newGatedEmbedder(h.embedder)
				h.cfg.Embedder = gated
				h.cfg.Workers = 1
				h.cfg.QueueSize = 4
				p = h.pipeline()
			})

			AfterEach(func() {
				p.Close()
			})

			It("cancels the running ingestion before removing chunks", func() {
				running, err := p.Upload(ctx, "alice", "running.txt", "text/plain", []byte(testText))
				Expect(err).NotTo(HaveOccurred())
				Eventually(gated.started).Should(Receive())

				Expect(p.DeleteDocument(ctx, "alice", running.ID)).To(Succeed())
				close(gated.gate)
				p.Close()

				Expect(h.chunksOf(ctx, running.ID)).To(BeEmpty())
				_, err = h.store.Get(ctx, running.ID)
				Expect(errors.Is(err, errs.ErrNotFound)).To(BeTrue())

				for _, e := range h.events.Events() {
					if e.DocumentID == running.ID {
						Expect(e.EventType).NotTo(Equal(eventstream.EventTypeDocumentIngested))
					}
				}
			})

			It("skips a queued ingestion of a deleted document", func() {
				first, err := p.Upload(ctx, "alice", "first.txt", "text/plain", []byte(testText))
				Expect(err).NotTo(HaveOccurred())
				Eventually(gated.started).Should(Receive())

				queued, err := p.Upload(ctx, "alice", "queued.txt", "text/plain", []byte(testText))
				Expect(err).NotTo(HaveOccurred())
				Expect(p.DeleteDocument(ctx, "alice", queued.ID)).To(Succeed())

				close(gated.gate)
				p.Close()

				Expect(h.chunksOf(ctx, queued.ID)).To(BeEmpty())
				Expect(h.chunksOf(ctx, first.ID)).To(HaveLen(len(h.chunks())))
			})
		})
	})

	Describe("Reingest", func() {
		It("retries the given indices of the owner's document", func() {
			p := h.pipeline()
			h.embedder.SetFail(h.chunks()[3], true)

			doc, err := p.Upload(ctx, "alice", "notes.txt", "text/plain", []byte(testText))
			Expect(errors.Is(err, errs.ErrPartialIngestion)).To(BeTrue())

			h.embedder.SetFail(h.chunks()[3], false)
			report, err := p.Reingest(ctx, "alice", doc.ID, []int{3})
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Attempted).To(Equal(1))
			Expect(report.Status).To(Equal(storage.StatusReady))

			_, err = p.Reingest(ctx, "bob", doc.ID, nil)
			Expect(errors.Is(err, errs.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("ListDocuments", func() {
		It("lists only the owner's documents", func() {
			p := h.pipeline()
			_, err := p.Upload(ctx, "alice", "a.txt", "text/plain", []byte("alpha"))
			Expect(err).NotTo(HaveOccurred())
			_, err = p.Upload(ctx, "bob", "b.txt", "text/plain", []byte("bravo"))
			Expect(err).NotTo(HaveOccurred())

			docs, err := p.ListDocuments(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].FileName).To(Equal("a.txt"))
		})
	})
})

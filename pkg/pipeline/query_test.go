package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/docchat/pkg/embeddings"
	"github.com/papercomputeco/docchat/pkg/errs"
	"github.com/papercomputeco/docchat/pkg/llm"
	"github.com/papercomputeco/docchat/pkg/pipeline"
)

var _ = Describe("Retrieval", func() {
	var (
		ctx context.Context
		h   *harness
		p   *pipeline.Pipeline
	)

	BeforeEach(func() {
		ctx = context.Background()
		h = newHarness()
		p = h.pipeline()
	})

	ingest := func() {
		_, err := p.Ingest(ctx, h.putDocument(ctx, "d1", "alice"))
		Expect(err).NotTo(HaveOccurred())
	}

	Describe("Retrieve", func() {
		It("ranks the chunk matching the question first", func() {
			ingest()
			question := h.chunks()[2]

			results, err := p.Retrieve(ctx, question, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].Index).To(Equal(2))
			Expect(results[0].Distance).To(BeNumerically("~", 0, 1e-6))

			last := h.embedder.Calls[len(h.embedder.Calls)-1]
			Expect(last.Role).To(Equal(embeddings.RoleQuery))
		})

		It("uses the configured top k when k is not positive", func() {
			ingest()
			results, err := p.Retrieve(ctx, "anything", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
		})

		It("rejects empty questions", func() {
			_, err := p.Retrieve(ctx, "  ", 1)
			Expect(errors.Is(err, errs.ErrValidation)).To(BeTrue())
		})
	})

	Describe("BuildContext", func() {
		It("joins chunk contents in rank order", func() {
			ingest()
			text, results, err := p.BuildContext(ctx, h.chunks()[0], 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(text).To(Equal(results[0].Content + "\n---\n" + results[1].Content))
			Expect(strings.HasPrefix(text, h.chunks()[0])).To(BeTrue())
		})

		It("returns ErrNoContext for an empty index", func() {
			_, _, err := p.BuildContext(ctx, "what is this?", 5)
			Expect(err).To(MatchError(pipeline.ErrNoContext))
			Expect(errors.Is(err, errs.ErrUpstreamUnavailable)).To(BeFalse())
		})

		It("keeps embedder failures distinct from empty retrieval", func() {
			ingest()
			h.embedder.SetFail("what is this?", true)

			_, _, err := p.BuildContext(ctx, "what is this?", 5)
			Expect(errors.Is(err, errs.ErrUpstreamUnavailable)).To(BeTrue())
			Expect(errors.Is(err, pipeline.ErrNoContext)).To(BeFalse())
		})
	})

	Describe("Prepare", func() {
		It("keeps the retrieved sources with the prompt", func() {
			ingest()
			prompt, err := p.Prepare(ctx, h.chunks()[3], nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(prompt.Sources).To(HaveLen(3))
			Expect(prompt.Sources[0].Index).To(Equal(3))
			Expect(prompt.System).To(HavePrefix("You are a professional research assistant."))
			Expect(prompt.History).To(HaveLen(1))
			Expect(h.completer.Systems).To(BeEmpty())
		})
	})

	Describe("Answer", func() {
		It("streams the completion with the retrieved context", func() {
			ingest()
			var out bytes.Buffer
			history := []llm.Message{llm.NewTextMessage(llm.RoleUser, h.chunks()[1])}

			Expect(p.Answer(ctx, h.chunks()[1], history, &out)).To(Succeed())
			Expect(out.String()).To(Equal("The answer is 42."))

			system := h.completer.LastSystem()
			Expect(system).To(ContainSubstring("CONTEXT:"))
			Expect(system).To(ContainSubstring(h.chunks()[1]))
			Expect(h.completer.Histories[0]).To(Equal(history))
		})

		It("sends the question alone when there is no history", func() {
			ingest()
			Expect(p.Answer(ctx, "alpha", nil, &bytes.Buffer{})).To(Succeed())
			Expect(h.completer.Histories[0]).To(Equal([]llm.Message{llm.NewTextMessage(llm.RoleUser, "alpha")}))
		})

		It("writes nothing when there is no context", func() {
			var out bytes.Buffer
			err := p.Answer(ctx, "alpha", nil, &out)
			Expect(err).To(MatchError(pipeline.ErrNoContext))
			Expect(out.Len()).To(BeZero())
			Expect(h.completer.Systems).To(BeEmpty())
		})

		It("surfaces completion failures", func() {
			ingest()
			h.completer.Err = errs.ErrUpstreamUnavailable
			err := p.Answer(ctx, "alpha", nil, &bytes.Buffer{})
			Expect(errors.Is(err, errs.ErrUpstreamUnavailable)).To(BeTrue())
		})
	})
})

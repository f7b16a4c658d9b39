package chunker_test

import (
	"strings"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/docchat/pkg/chunker"
	"github.com/papercomputeco/docchat/pkg/errs"
)

var _ = Describe("Split", func() {
	It("returns nil for empty text", func() {
		chunks, err := chunker.Split("", 100, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(BeNil())
	})

	It("returns short text as a single chunk", func() {
		chunks, err := chunker.Split("hello world", 100, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(Equal([]string{"hello world"}))
	})

	It("prefers paragraph boundaries", func() {
		text := "para one.\n\npara two.\n\npara three."
		chunks, err := chunker.Split(text, 12, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(Equal([]string{"para one.\n\n", "para two.\n\n", "para three."}))
	})

	It("carries overlap into the next chunk", func() {
		chunks, err := chunker.Split("a b c d e f", 5, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(Equal([]string{"a b ", "b c ", "c d ", "d e f"}))
	})

	It("falls through to character splits for long words", func() {
		chunks, err := chunker.Split("abcdefghij", 4, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(Equal([]string{"abcd", "defg", "ghij"}))
	})

	DescribeTable("rejects invalid parameters",
		func(size, overlap int) {
			_, err := chunker.Split("text", size, overlap)
			Expect(err).To(MatchError(errs.ErrValidation))
		},
		Entry("zero chunk size", 0, 0),
		Entry("negative overlap", 10, -1),
		Entry("overlap equal to chunk size", 10, 10),
		Entry("overlap larger than chunk size", 10, 20),
	)
})

var _ = Describe("Splitter", func() {
	corpus := []string{
		"The quick brown fox jumps over the lazy dog.",
		strings.Repeat("Lorem ipsum dolor sit amet, consectetur adipiscing elit.\n", 40),
		strings.Repeat("First paragraph sentence. ", 30) + "\n\n" + strings.Repeat("Second paragraph. ", 50),
		"héllo wörld, ça va? " + strings.Repeat("ünïcödé ", 60),
		strings.Repeat("x", 317),
		"\n\n\n\nleading breaks\n\n\n\ntrailing\n\n",
	}

	DescribeTable("keeps every chunk within the size and reconstructs the text",
		func(size, overlap int) {
			s, err := chunker.New(chunker.WithChunkSize(size), chunker.WithOverlap(overlap))
			Expect(err).NotTo(HaveOccurred())

			for _, text := range corpus {
				pieces := s.Pieces(text)
				Expect(pieces).NotTo(BeEmpty())

				for _, p := range pieces {
					Expect(utf8.RuneCountInString(p.Text)).To(BeNumerically("<=", size))
					Expect(p.End - p.Start).To(Equal(utf8.RuneCountInString(p.Text)))
				}
				for i := 1; i < len(pieces); i++ {
					shared := pieces[i-1].End - pieces[i].Start
					Expect(shared).To(BeNumerically(">=", 0))
					Expect(shared).To(BeNumerically("<=", overlap))
				}

				Expect(chunker.Merge(pieces)).To(Equal(text))
			}
		},
		Entry("defaults scaled down", 150, 20),
		Entry("no overlap", 64, 0),
		Entry("tight", 7, 3),
		Entry("large", 1500, 200),
	)

	It("uses the documented defaults", func() {
		s, err := chunker.New()
		Expect(err).NotTo(HaveOccurred())
		Expect(s.ChunkSize()).To(Equal(chunker.DefaultChunkSize))
		Expect(s.Overlap()).To(Equal(chunker.DefaultOverlap))
	})

	It("keeps oversized spans whole when no finer separator is configured", func() {
		s, err := chunker.New(
			chunker.WithChunkSize(5),
			chunker.WithOverlap(0),
			chunker.WithSeparators(" "),
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Split("tiny enormousword end")).To(Equal([]string{"tiny ", "enormousword ", "end"}))
	})

	It("rejects an empty separator list", func() {
		_, err := chunker.New(chunker.WithSeparators())
		Expect(err).To(MatchError(errs.ErrValidation))
	})
})

package testutils

import (
	"context"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/docchat/pkg/errs"
	"github.com/papercomputeco/docchat/pkg/vector"
)

// IndexContractDims is the vector length used by IndexContract.
const IndexContractDims = 2

// NewTestChunk builds a chunk whose vector is (x, 0).
func NewTestChunk(id, parent string, index int, x float32) vector.Chunk {
	return vector.Chunk{
		ID:       id,
		ParentID: parent,
		Content:  "content of " + id,
		Index:    index,
		Vector:   []float32{x, 0},
	}
}

// IndexContract registers the behavior every vector.Index must satisfy.
// newIndex is called before each spec and must return an empty index of
// IndexContractDims dimensions.
func IndexContract(newIndex func() vector.Index) {
	var (
		ctx   context.Context
		index vector.Index
	)

	BeforeEach(func() {
		ctx = context.Background()
		index = newIndex()
		DeferCleanup(func() {
			Expect(index.Close()).To(Succeed())
		})
	})

	ids := func(results []vector.Result) []string {
		out := make([]string, len(results))
		for i, r := range results {
			out[i] = r.ID
		}
		return out
	}

	It("returns an empty result for an empty index", func() {
		results, err := index.Query(ctx, []float32{0, 0}, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(BeEmpty())
	})

	It("ranks chunks by ascending distance", func() {
		Expect(index.Insert(ctx,
			NewTestChunk("A", "doc", 0, 0.9),
			NewTestChunk("B", "doc", 1, 0.2),
			NewTestChunk("C", "doc", 2, 0.5),
		)).To(Succeed())

		results, err := index.Query(ctx, []float32{0, 0}, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids(results)).To(Equal([]string{"B", "C"}))
		Expect(results[0].Distance).To(BeNumerically("~", 0.2, 1e-6))
		Expect(results[1].Distance).To(BeNumerically("~", 0.5, 1e-6))
		Expect(results[0].Content).To(Equal("content of B"))
		Expect(results[0].ParentID).To(Equal("doc"))
		Expect(results[0].Index).To(Equal(1))
	})

	It("returns fewer than k results when fewer exist", func() {
		Expect(index.Insert(ctx, NewTestChunk("A", "doc", 0, 1))).To(Succeed())

		results, err := index.Query(ctx, []float32{0, 0}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
	})

	It("breaks ties by insertion order", func() {
		Expect(index.Insert(ctx, NewTestChunk("late", "p1", 0, 1))).To(Succeed())
		Expect(index.Insert(ctx, NewTestChunk("early", "p2", 0, -1))).To(Succeed())
		Expect(index.Insert(ctx, NewTestChunk("last", "p3", 0, 1))).To(Succeed())

		results, err := index.Query(ctx, []float32{0, 0}, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids(results)).To(Equal([]string{"late", "early", "last"}))
	})

	It("is deterministic for repeated queries", func() {
		for i := range 10 {
			Expect(index.Insert(ctx, NewTestChunk(fmt.Sprintf("c%d", i), "doc", i, float32(i%4)))).To(Succeed())
		}

		first, err := index.Query(ctx, []float32{1.5, 0}, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(first).To(HaveLen(5))
		for i := 1; i < len(first); i++ {
			Expect(first[i].Distance).To(BeNumerically(">=", first[i-1].Distance))
		}

		for range 3 {
			again, err := index.Query(ctx, []float32{1.5, 0}, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(again)).To(Equal(ids(first)))
		}
	})

	It("replaces a chunk re-inserted with the same id", func() {
		Expect(index.Insert(ctx, NewTestChunk("A", "doc", 0, 5))).To(Succeed())
		replaced := NewTestChunk("A", "doc", 0, 1)
		replaced.Content = "new content"
		Expect(index.Insert(ctx, replaced)).To(Succeed())

		results, err := index.Query(ctx, []float32{0, 0}, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].Content).To(Equal("new content"))
		Expect(results[0].Distance).To(BeNumerically("~", 1, 1e-6))
	})

	It("removes every chunk of a parent", func() {
		Expect(index.Insert(ctx,
			NewTestChunk("a0", "a", 0, 1),
			NewTestChunk("a1", "a", 1, 2),
			NewTestChunk("b0", "b", 0, 3),
		)).To(Succeed())

		Expect(index.DeleteByParent(ctx, "a")).To(Succeed())

		results, err := index.Query(ctx, []float32{0, 0}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids(results)).To(Equal([]string{"b0"}))
	})

	It("treats deleting an unknown parent as a no-op", func() {
		Expect(index.DeleteByParent(ctx, "nobody")).To(Succeed())
	})

	It("rejects vectors of the wrong dimension", func() {
		bad := vector.Chunk{ID: "x", ParentID: "doc", Vector: []float32{1, 2, 3}}
		Expect(index.Insert(ctx, bad)).To(MatchError(errs.ErrValidation))

		_, err := index.Query(ctx, []float32{1}, 1)
		Expect(err).To(MatchError(errs.ErrValidation))
	})

	It("rejects a non-positive k", func() {
		_, err := index.Query(ctx, []float32{0, 0}, 0)
		Expect(err).To(MatchError(errs.ErrValidation))
	})

	It("never shows a half-deleted parent to concurrent queries", func() {
		const n = 20
		chunks := make([]vector.Chunk, 0, n)
		for i := range n {
			chunks = append(chunks, NewTestChunk(fmt.Sprintf("p%d", i), "parent", i, float32(i)))
		}
		Expect(index.Insert(ctx, chunks...)).To(Succeed())

		var wg sync.WaitGroup
		observed := make(chan int, 64)
		for range 4 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				for range 10 {
					results, err := index.Query(ctx, []float32{0, 0}, n)
					Expect(err).NotTo(HaveOccurred())
					observed <- len(results)
				}
			}()
		}

		Expect(index.DeleteByParent(ctx, "parent")).To(Succeed())
		wg.Wait()
		close(observed)

		for count := range observed {
			Expect(count).To(Or(Equal(0), Equal(n)))
		}
	})
}

package sqlitevec_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/docchat/pkg/logger"
	testutils "github.com/papercomputeco/docchat/pkg/utils/test"
	"github.com/papercomputeco/docchat/pkg/vector"
	"github.com/papercomputeco/docchat/pkg/vector/sqlitevec"
)

var _ = Describe("Index", func() {
	Describe("NewIndex", func() {
		It("should return an error when DBPath is empty", func() {
			_, err := sqlitevec.NewIndex(sqlitevec.Config{Dimensions: 4}, logger.Nop())
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("database path is required"))
		})

		It("should error when dimension not specified", func() {
			_, err := sqlitevec.NewIndex(sqlitevec.Config{DBPath: ":memory:"}, logger.Nop())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("contract", func() {
		testutils.IndexContract(func() vector.Index {
			idx, err := sqlitevec.NewIndex(sqlitevec.Config{
				DBPath:     ":memory:",
				Dimensions: testutils.IndexContractDims,
			}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			return idx
		})
	})

	It("persists chunks across reopen", func() {
		ctx := context.Background()
		path := filepath.Join(GinkgoT().TempDir(), "vectors.sqlite")
		cfg := sqlitevec.Config{DBPath: path, Dimensions: 2}

		idx, err := sqlitevec.NewIndex(cfg, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(idx.Insert(ctx, testutils.NewTestChunk("A", "doc", 0, 0.5))).To(Succeed())
		Expect(idx.Close()).To(Succeed())

		idx, err = sqlitevec.NewIndex(cfg, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		defer idx.Close()

		results, err := idx.Query(ctx, []float32{0, 0}, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].Vector).To(Equal([]float32{0.5, 0}))
	})
})

package chunker

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/docchat/pkg/logger"
)

var _ = Describe("Pieces recovery", func() {
	It("returns the whole text as one chunk when splitting panics", func() {
		// A splitter without separators cannot pick one and panics.
		s := &Splitter{chunkSize: 4, overlap: 1, logger: logger.Nop()}

		Expect(s.Split("some longer text")).To(Equal([]string{"some longer text"}))
	})
})

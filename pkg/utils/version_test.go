package utils_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/docchat/pkg/utils"
)

var _ = Describe("IsRelease", func() {
	var saved string

	BeforeEach(func() {
		saved = utils.Version
		DeferCleanup(func() { utils.Version = saved })
	})

	It("is false for local builds", func() {
		utils.Version = "dev"
		Expect(utils.IsRelease()).To(BeFalse())
	})

	It("is true once the version is stamped", func() {
		utils.Version = "v0.4.1"
		Expect(utils.IsRelease()).To(BeTrue())
	})
})

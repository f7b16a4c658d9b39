package app_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/docchat/pkg/app"
	"github.com/papercomputeco/docchat/pkg/config"
	"github.com/papercomputeco/docchat/pkg/logger"
)

var _ = Describe("Build", func() {
	var (
		ctx context.Context
		dir string
		cfg *config.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()

		var err error
		cfg, err = config.PresetConfig("local")
		Expect(err).NotTo(HaveOccurred())
	})

	It("builds an in-process pipeline", func() {
		a, err := app.Build(ctx, cfg, app.Options{ConfigDir: dir}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(a.Close)

		Expect(a.Pipeline).NotTo(BeNil())
		Expect(a.Pipeline.TopK()).To(Equal(int(cfg.Pipeline.TopK)))
		Expect(a.Splitter.ChunkSize()).To(Equal(int(cfg.Chunker.ChunkSize)))
		Expect(a.Sessions).To(BeNil())
		Expect(a.Auth).To(BeNil())

		info, err := os.Stat(filepath.Join(dir, "blobs"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
	})

	It("builds sessions and auth for the server", func() {
		a, err := app.Build(ctx, cfg, app.Options{ConfigDir: dir, Server: true}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(a.Close)

		Expect(a.Sessions).NotTo(BeNil())
		Expect(a.Sessions.TTL().Hours()).To(BeNumerically("==", 168))
		Expect(a.Auth).NotTo(BeNil())
	})

	It("places sqlite databases under the docchat dir by default", func() {
		cfg, err := config.PresetConfig("sqlite")
		Expect(err).NotTo(HaveOccurred())

		a, err := app.Build(ctx, cfg, app.Options{ConfigDir: dir, Synchronous: true}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(a.Close)

		Expect(filepath.Join(dir, "docchat.sqlite")).To(BeAnExistingFile())
		Expect(filepath.Join(dir, "vectors.sqlite")).To(BeAnExistingFile())
	})

	DescribeTable("rejects unknown providers",
		func(mutate func(*config.Config)) {
			mutate(cfg)
			_, err := app.Build(ctx, cfg, app.Options{ConfigDir: dir, Server: true}, logger.Nop())
			Expect(err).To(HaveOccurred())
		},
		Entry("storage", func(c *config.Config) { c.Storage.Driver = "mongo" }),
		Entry("vector store", func(c *config.Config) { c.VectorStore.Provider = "faiss" }),
		Entry("embedding", func(c *config.Config) { c.Embedding.Provider = "openai" }),
		Entry("completion", func(c *config.Config) { c.Completion.Provider = "openai" }),
		Entry("events", func(c *config.Config) { c.Events.Provider = "nats" }),
		Entry("session", func(c *config.Config) { c.Session.Provider = "memcached" }),
		Entry("session ttl", func(c *config.Config) { c.Session.TTL = "soon" }),
		Entry("redis without address", func(c *config.Config) { c.Session.Provider = "redis" }),
	)

	It("is safe to close twice", func() {
		a, err := app.Build(ctx, cfg, app.Options{ConfigDir: dir}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Close()).To(Succeed())
		Expect(a.Close()).To(Succeed())
	})
})

package initcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/docchat/cmd/docchat/init"
	"github.com/papercomputeco/docchat/pkg/config"
)

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{"extra"})).To(HaveOccurred())
	})

	It("has a --preset flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "docchat-init-test-*")
		Expect(err).NotTo(HaveOccurred())
		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		DeferCleanup(func() {
			os.Chdir(origDir)
			os.RemoveAll(tmpDir)
		})

		out = &bytes.Buffer{}
	})

	execute := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetOut(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	readConfig := func() *config.Config {
		data, err := os.ReadFile(filepath.Join(tmpDir, ".docchat", "config.toml"))
		Expect(err).NotTo(HaveOccurred())
		cfg := &config.Config{}
		_, err = toml.Decode(string(data), cfg)
		Expect(err).NotTo(HaveOccurred())
		return cfg
	}

	It("creates a .docchat directory with a default config", func() {
		Expect(execute()).To(Succeed())

		info, err := os.Stat(filepath.Join(tmpDir, ".docchat"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())

		cfg := readConfig()
		Expect(cfg.Storage.Driver).To(Equal(config.NewDefaultConfig().Storage.Driver))
		Expect(out.String()).To(ContainSubstring("Initialized .docchat directory"))
	})

	It("writes the named preset", func() {
		Expect(execute("--preset", "stack")).To(Succeed())

		cfg := readConfig()
		Expect(cfg.Storage.Driver).To(Equal("postgres"))
		Expect(cfg.VectorStore.Provider).To(Equal("pgvector"))
		Expect(cfg.Session.Provider).To(Equal("redis"))
	})

	It("rejects an unknown preset without creating the directory", func() {
		Expect(execute("--preset", "nope")).To(HaveOccurred())

		_, err := os.Stat(filepath.Join(tmpDir, ".docchat"))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("leaves an existing directory alone", func() {
		Expect(os.Mkdir(filepath.Join(tmpDir, ".docchat"), 0o755)).To(Succeed())

		Expect(execute("--preset", "sqlite")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Already initialized"))

		_, err := os.Stat(filepath.Join(tmpDir, ".docchat", "config.toml"))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})
})

package docchatcmder_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	docchatcmder "github.com/papercomputeco/docchat/cmd/docchat"
)

// fakeOllama serves /api/embed and /api/chat. Texts mentioning "ocean"
// embed close to each other so retrieval has a clear winner.
func fakeOllama() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input string `json:"input"`
		}
		Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())

		vec := []float32{0, 1, 0, 0}
		if strings.Contains(strings.ToLower(req.Input), "ocean") {
			vec = []float32{1, 0, 0, 0}
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{vec}})
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, part := range []string{"The ocean", " is deep."} {
			json.NewEncoder(w).Encode(map[string]any{
				"message": map[string]string{"role": "assistant", "content": part},
				"done":    false,
			})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": ""},
			"done":    true,
		})
	})
	return httptest.NewServer(mux)
}

var _ = Describe("docchat", func() {
	var (
		configDir string
		out       *bytes.Buffer
	)

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	execute := func(args ...string) error {
		cmd := docchatcmder.NewDocchatCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(append(args, "--config-dir", configDir))
		return cmd.Execute()
	}

	writeFile := func(name, content string) string {
		path := filepath.Join(GinkgoT().TempDir(), name)
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
		return path
	}

	It("registers every subcommand", func() {
		cmd := docchatcmder.NewDocchatCmd()
		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("serve", "ingest", "ask", "config", "init", "hash-password", "version"))
	})

	Describe("ingest --dry-run", func() {
		It("prints chunks without touching any backend", func() {
			path := writeFile("notes.md", strings.Repeat("abcdefghij", 5))

			Expect(execute("ingest", path, "--dry-run", "--chunk-size", "20", "--chunk-overlap", "0")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("3 chunks"))
			Expect(out.String()).To(ContainSubstring("#2"))

			_, err := os.Stat(filepath.Join(configDir, "docchat.sqlite"))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("rejects unsupported files", func() {
			path := writeFile("photo.png", "\x89PNG\r\n\x1a\n")
			Expect(execute("ingest", path, "--dry-run")).To(HaveOccurred())
		})
	})

	Describe("hash-password", func() {
		It("prints a bcrypt hash of the first stdin line", func() {
			cmd := docchatcmder.NewDocchatCmd()
			cmd.SetOut(out)
			cmd.SetIn(strings.NewReader("correct horse\nignored\n"))
			cmd.SetArgs([]string{"hash-password"})
			Expect(cmd.Execute()).To(Succeed())

			hash := strings.TrimSpace(out.String())
			Expect(bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse"))).To(Succeed())
		})

		It("fails on empty input", func() {
			cmd := docchatcmder.NewDocchatCmd()
			cmd.SetOut(out)
			cmd.SetErr(out)
			cmd.SetIn(strings.NewReader(""))
			cmd.SetArgs([]string{"hash-password"})
			Expect(cmd.Execute()).To(HaveOccurred())
		})
	})

	Describe("ingest and ask", func() {
		var backend []string

		BeforeEach(func() {
			ollama := fakeOllama()
			DeferCleanup(ollama.Close)

			backend = []string{
				"--embedding-target", ollama.URL,
				"--embedding-dimensions", "4",
				"--storage-driver", "sqlite",
				"--vector-store-provider", "sqlite",
			}
		})

		It("answers from an ingested file", func() {
			path := writeFile("sea.txt", "The ocean covers most of the planet.")

			args := append([]string{"ingest", path}, backend...)
			Expect(execute(args...)).To(Succeed())
			Expect(out.String()).To(ContainSubstring("ready"))

			Expect(filepath.Join(configDir, "docchat.sqlite")).To(BeAnExistingFile())
			Expect(filepath.Join(configDir, "vectors.sqlite")).To(BeAnExistingFile())

			out.Reset()
			args = append([]string{"ask", "How", "big", "is", "the", "ocean?", "--sources",
				"--completion-target", backend[1]}, backend...)
			Expect(execute(args...)).To(Succeed())
			Expect(out.String()).To(ContainSubstring("The ocean is deep."))
			Expect(out.String()).To(ContainSubstring("Sources"))
			Expect(out.String()).To(ContainSubstring("[0]"))
		})

		It("reports missing context instead of failing", func() {
			args := append([]string{"ask", "anything", "--completion-target", backend[1]}, backend...)
			Expect(execute(args...)).To(Succeed())
			Expect(out.String()).To(ContainSubstring("No relevant document context"))
		})
	})
})

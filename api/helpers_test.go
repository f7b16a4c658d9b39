package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/papercomputeco/docchat/pkg/auth"
	"github.com/papercomputeco/docchat/pkg/blob"
	"github.com/papercomputeco/docchat/pkg/chunker"
	"github.com/papercomputeco/docchat/pkg/config"
	"github.com/papercomputeco/docchat/pkg/logger"
	"github.com/papercomputeco/docchat/pkg/pipeline"
	"github.com/papercomputeco/docchat/pkg/session"
	sessionmem "github.com/papercomputeco/docchat/pkg/session/inmemory"
	"github.com/papercomputeco/docchat/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/docchat/pkg/utils/test"
	vectormem "github.com/papercomputeco/docchat/pkg/vector/inmemory"
)

const (
	testDims     = 8
	testPassword = "correct horse"
	testTTL      = time.Hour

	// testText splits into four chunks at size 20 with no overlap.
	testText = "alpha one two three bravo four five six charlie seven eight delta nine ten"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	server    *Server
	embedder  *testutils.MockEmbedder
	completer *testutils.MockCompleter
	splitter  *chunker.Splitter
	clock     *fakeClock
}

func newTestEnv(cfg Config) *testEnv {
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	Expect(err).NotTo(HaveOccurred())

	authn, err := auth.NewAuthenticator([]config.UserConfig{
		{ID: "u-alice", Email: "alice@example.com", Name: "Alice", PasswordHash: string(hash)},
		{ID: "u-bob", Email: "bob@example.com", Name: "Bob", PasswordHash: string(hash)},
	})
	Expect(err).NotTo(HaveOccurred())

	splitter, err := chunker.New(chunker.WithChunkSize(20), chunker.WithOverlap(0))
	Expect(err).NotTo(HaveOccurred())

	env := &testEnv{
		embedder:  testutils.NewMockEmbedder(testDims),
		completer: testutils.NewMockCompleter("The answer", " is 42."),
		splitter:  splitter,
		clock:     &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
	}

	p, err := pipeline.New(&pipeline.Config{
		Splitter:  splitter,
		Embedder:  env.embedder,
		Index:     vectormem.NewIndex(testDims),
		Store:     inmemory.NewDriver(),
		Blobs:     blob.NewMemStore(logger.Nop()),
		Completer: env.completer,
		TopK:      3,
		Logger:    logger.Nop(),
	})
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(p.Close)

	sessions := session.NewCache(sessionmem.NewStore(sessionmem.WithClock(env.clock.Now)), testTTL, logger.Nop())

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":0"
	}
	env.server, err = NewServer(cfg, p, sessions, authn, logger.Nop())
	Expect(err).NotTo(HaveOccurred())
	return env
}

func (e *testEnv) do(req *http.Request) *http.Response {
	GinkgoHelper()
	resp, err := e.server.app.Test(req, -1)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func (e *testEnv) request(method, target string, body io.Reader, cookie *http.Cookie) *http.Request {
	GinkgoHelper()
	req, err := http.NewRequest(method, target, body)
	Expect(err).NotTo(HaveOccurred())
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func (e *testEnv) jsonRequest(method, target string, v any, cookie *http.Cookie) *http.Request {
	GinkgoHelper()
	b, err := json.Marshal(v)
	Expect(err).NotTo(HaveOccurred())
	req := e.request(method, target, bytes.NewReader(b), cookie)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// login returns the session cookie for email.
func (e *testEnv) login(email string) *http.Cookie {
	GinkgoHelper()
	resp := e.do(e.jsonRequest(http.MethodPost, "/v1/auth/login", loginRequest{Email: email, Password: testPassword}, nil))
	Expect(resp.StatusCode).To(Equal(http.StatusOK))
	c := sessionCookie(resp)
	Expect(c).NotTo(BeNil())
	return c
}

func (e *testEnv) upload(cookie *http.Cookie, fileName, contentType, content string) *http.Response {
	GinkgoHelper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	Expect(err).NotTo(HaveOccurred())
	_, err = io.WriteString(part, content)
	Expect(err).NotTo(HaveOccurred())
	Expect(mw.Close()).To(Succeed())

	req := e.request(http.MethodPost, "/v1/documents", &body, cookie)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(req)
}

func (e *testEnv) chunks() []string {
	return e.splitter.Split(testText)
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	return nil
}

func decode[T any](resp *http.Response) T {
	GinkgoHelper()
	defer resp.Body.Close()
	var v T
	Expect(json.NewDecoder(resp.Body).Decode(&v)).To(Succeed())
	return v
}

func readBody(resp *http.Response) string {
	GinkgoHelper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return strings.TrimSpace(string(b))
}

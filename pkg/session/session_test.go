package session_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/docchat/pkg/errs"
	"github.com/papercomputeco/docchat/pkg/logger"
	"github.com/papercomputeco/docchat/pkg/session"
	"github.com/papercomputeco/docchat/pkg/session/inmemory"
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

type brokenStore struct{}

var errDown = errors.New("connection refused")

func (brokenStore) Set(context.Context, string, []byte, time.Duration) error { return errDown }
func (brokenStore) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, errDown }
func (brokenStore) Delete(context.Context, string) error                     { return errDown }
func (brokenStore) Close() error                                             { return nil }

var _ = Describe("Cache", func() {
	var (
		ctx   context.Context
		clock *fakeClock
		store *inmemory.Store
		cache *session.Cache
	)

	BeforeEach(func() {
		ctx = context.Background()
		clock = &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		store = inmemory.NewStore(inmemory.WithClock(clock.Now))
		cache = session.NewCache(store, 0, logger.Nop())
	})

	It("defaults the TTL to seven days", func() {
		Expect(cache.TTL()).To(Equal(7 * 24 * time.Hour))
	})

	It("round-trips a payload until the TTL elapses", func() {
		payload := []byte(`{"user":{"userId":"u1","email":"alice@example.com","name":"Alice"}}`)

		h, err := cache.Create(ctx, payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Valid()).To(BeTrue())

		got, ok, err := cache.Read(ctx, h)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal(payload))

		clock.Advance(7*24*time.Hour - time.Second)
		_, ok, err = cache.Read(ctx, h)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		clock.Advance(time.Second)
		_, ok, err = cache.Read(ctx, h)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(store.Len()).To(BeZero())
	})

	It("generates distinct 256-bit handles", func() {
		seen := map[session.Handle]bool{}
		for range 100 {
			h, err := cache.Create(ctx, []byte("x"))
			Expect(err).NotTo(HaveOccurred())
			Expect(h).To(HaveLen(43))
			Expect(seen).NotTo(HaveKey(h))
			seen[h] = true
		}
	})

	It("stores records under the SESSION_ prefix", func() {
		h, err := cache.Create(ctx, []byte("x"))
		Expect(err).NotTo(HaveOccurred())

		v, ok, err := store.Get(ctx, "SESSION_"+string(h))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal([]byte("x")))
	})

	It("treats a zero-length TTL store write as already expired", func() {
		Expect(store.Set(ctx, "k", []byte("v"), 0)).To(Succeed())
		_, ok, err := store.Get(ctx, "k")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("invalidates sessions idempotently", func() {
		h, err := cache.Create(ctx, []byte("x"))
		Expect(err).NotTo(HaveOccurred())

		Expect(cache.Invalidate(ctx, h)).To(Succeed())
		Expect(cache.Invalidate(ctx, h)).To(Succeed())

		_, ok, err := cache.Read(ctx, h)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	DescribeTable("reports malformed handles as absent",
		func(h session.Handle) {
			_, ok, err := session.NewCache(brokenStore{}, time.Hour, logger.Nop()).Read(ctx, h)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		},
		Entry("empty", session.Handle("")),
		Entry("too short", session.Handle("abc")),
		Entry("bad alphabet", session.Handle(strings.Repeat("+", 43))),
	)

	It("reports unknown well-formed handles as absent", func() {
		_, ok, err := cache.Read(ctx, session.Handle(strings.Repeat("A", 43)))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("wraps store failures as store unavailable", func() {
		broken := session.NewCache(brokenStore{}, time.Hour, logger.Nop())

		_, err := broken.Create(ctx, []byte("x"))
		Expect(errors.Is(err, errs.ErrStoreUnavailable)).To(BeTrue())

		_, _, err = broken.Read(ctx, session.Handle(strings.Repeat("A", 43)))
		Expect(errors.Is(err, errs.ErrStoreUnavailable)).To(BeTrue())

		err = broken.Invalidate(ctx, session.Handle(strings.Repeat("A", 43)))
		Expect(errors.Is(err, errs.ErrStoreUnavailable)).To(BeTrue())
	})

	It("copies payloads so callers cannot mutate stored records", func() {
		payload := []byte("abc")
		h, err := cache.Create(ctx, payload)
		Expect(err).NotTo(HaveOccurred())
		payload[0] = 'z'

		got, _, err := cache.Read(ctx, h)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(got)).To(Equal("abc"))
	})
})

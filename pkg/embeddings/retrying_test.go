package embeddings_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/docchat/pkg/embeddings"
	"github.com/papercomputeco/docchat/pkg/errs"
	"github.com/papercomputeco/docchat/pkg/logger"
	"github.com/papercomputeco/docchat/pkg/retry"
)

// flakyEmbedder fails the first n calls with err.
type flakyEmbedder struct {
	failures int
	err      error
	calls    int
	roles    []embeddings.Role
}

func (f *flakyEmbedder) Embed(_ context.Context, _ string, role embeddings.Role) ([]float32, error) {
	f.calls++
	f.roles = append(f.roles, role)
	if f.calls <= f.failures {
		return nil, f.err
	}
	return []float32{1, 2, 3}, nil
}

func (f *flakyEmbedder) Dimensions() uint { return 3 }
func (f *flakyEmbedder) Close() error     { return nil }

var _ = Describe("Retrying", func() {
	policy := retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	It("retries upstream failures until success", func() {
		inner := &flakyEmbedder{failures: 2, err: errs.ErrUpstreamUnavailable}
		r := embeddings.NewRetrying(inner, policy, logger.Nop())

		vec, err := r.Embed(context.Background(), "hello", embeddings.RoleQuery)
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(Equal([]float32{1, 2, 3}))
		Expect(inner.calls).To(Equal(3))
		Expect(inner.roles).To(HaveEach(embeddings.RoleQuery))
	})

	It("gives up after the configured attempts", func() {
		inner := &flakyEmbedder{failures: 10, err: errs.ErrUpstreamUnavailable}
		r := embeddings.NewRetrying(inner, policy, logger.Nop())

		_, err := r.Embed(context.Background(), "hello", embeddings.RoleDocument)
		Expect(err).To(MatchError(errs.ErrUpstreamUnavailable))
		Expect(inner.calls).To(Equal(3))
	})

	It("does not retry other errors", func() {
		boom := errors.New("boom")
		inner := &flakyEmbedder{failures: 10, err: boom}
		r := embeddings.NewRetrying(inner, policy, logger.Nop())

		_, err := r.Embed(context.Background(), "hello", embeddings.RoleDocument)
		Expect(err).To(MatchError(boom))
		Expect(inner.calls).To(Equal(1))
	})

	It("passes through dimensions", func() {
		r := embeddings.NewRetrying(&flakyEmbedder{}, policy, logger.Nop())
		Expect(r.Dimensions()).To(Equal(uint(3)))
	})
})

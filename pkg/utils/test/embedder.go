package testutils

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/papercomputeco/docchat/pkg/embeddings"
	"github.com/papercomputeco/docchat/pkg/errs"
)

// MockEmbedder is a test embedder that returns predictable embeddings.
// It is safe for concurrent use.
type MockEmbedder struct {
	mu sync.Mutex

	// Dims is the vector length returned for unknown texts.
	Dims uint

	// Embeddings maps exact input text to a fixed vector.
	Embeddings map[string][]float32

	// FailOn causes Embed to return an upstream error when the input text
	// is a key with a true value.
	FailOn map[string]bool

	// Calls records every (text, role) pair passed to Embed.
	Calls []EmbedCall
}

// EmbedCall is a single recorded Embed invocation.
type EmbedCall struct {
	Text string
	Role embeddings.Role
}

func NewMockEmbedder(dims uint) *MockEmbedder {
	return &MockEmbedder{
		Dims:       dims,
		Embeddings: make(map[string][]float32),
		FailOn:     make(map[string]bool),
	}
}

// SetFail toggles failure for text.
func (m *MockEmbedder) SetFail(text string, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailOn[text] = fail
}

func (m *MockEmbedder) Embed(_ context.Context, text string, role embeddings.Role) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, EmbedCall{Text: text, Role: role})

	if m.FailOn[text] {
		return nil, fmt.Errorf("%w: mock embedding failure for: %s", errs.ErrUpstreamUnavailable, text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	// Derive a stable vector from the text.
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, m.Dims)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(seed>>40) / float32(1<<24)
	}
	return vec, nil
}

// CallCount returns the number of Embed calls so far.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func (m *MockEmbedder) Dimensions() uint {
	return m.Dims
}

func (m *MockEmbedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*MockEmbedder)(nil)

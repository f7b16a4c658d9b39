package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/docchat/pkg/llm"
)

// MockCompleter streams a fixed reply and records what it was asked.
type MockCompleter struct {
	mu sync.Mutex

	// Deltas are streamed in order on every call.
	Deltas []string

	// Err, if set, is returned after the deltas are streamed.
	Err error

	Systems   []string
	Histories [][]llm.Message
}

func NewMockCompleter(deltas ...string) *MockCompleter {
	return &MockCompleter{Deltas: deltas}
}

func (m *MockCompleter) Complete(_ context.Context, system string, history []llm.Message, onDelta llm.DeltaFunc) error {
	m.mu.Lock()
	m.Systems = append(m.Systems, system)
	m.Histories = append(m.Histories, history)
	deltas, err := m.Deltas, m.Err
	m.mu.Unlock()

	for _, d := range deltas {
		if derr := onDelta(d); derr != nil {
			return derr
		}
	}
	return err
}

// LastSystem returns the most recent system prompt.
func (m *MockCompleter) LastSystem() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Systems) == 0 {
		return ""
	}
	return m.Systems[len(m.Systems)-1]
}

func (m *MockCompleter) Close() error {
	return nil
}

var _ llm.Completer = (*MockCompleter)(nil)

// Package inmemory provides a process-local session store with lazy expiry.
package inmemory

import (
	"context"
	"sync"
	"time"
)

// Clock returns the current time.
type Clock func() time.Time

type record struct {
	value     []byte
	expiresAt time.Time
}

// Store keeps records in a map. Expired records are removed when read.
type Store struct {
	mu      sync.RWMutex
	records map[string]record
	now     Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, letting tests advance time.
func WithClock(c Clock) Option {
	return func(s *Store) {
		s.now = c
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		records: make(map[string]record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set stores value until ttl elapses. A ttl <= 0 stores a record that is
// already expired.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	v := make([]byte, len(value))
	copy(v, value)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = record{value: v, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	r, ok := s.records[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	if !s.now().Before(r.expiresAt) {
		s.mu.Lock()
		// Recheck: a concurrent Set may have replaced the record.
		if cur, ok := s.records[key]; ok && !s.now().Before(cur.expiresAt) {
			delete(s.records, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}

	v := make([]byte, len(r.value))
	copy(v, r.value)
	return v, true, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}

// Len returns the number of records held, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) Close() error {
	return nil
}

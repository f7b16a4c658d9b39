// Package session provides the session cache: opaque handles mapped to
// short-lived payloads in a key-value store.
//
// Handles are 256-bit random values encoded as unpadded base64url. The cache
// never interprets payloads, and expired handles are indistinguishable from
// handles that never existed.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/docchat/pkg/errs"
)

const (
	// DefaultTTL is the lifetime of a session and of its cookie.
	DefaultTTL = 7 * 24 * time.Hour

	// KeyPrefix namespaces session records in the backing store.
	KeyPrefix = "SESSION_"

	handleBytes = 32
)

var handleLen = base64.RawURLEncoding.EncodedLen(handleBytes)

// Handle is an opaque session identifier. It is the only value that leaves
// the server, carried in the session cookie.
type Handle string

// Valid reports whether h has the shape of a generated handle.
func (h Handle) Valid() bool {
	if len(h) != handleLen {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(string(h))
	return err == nil
}

// Key returns the store key for h.
func (h Handle) Key() string {
	return KeyPrefix + string(h)
}

// Store is the key-value backend of the cache. Get reports absent for keys
// that were never set, were deleted, or whose TTL elapsed.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Cache creates, reads, and invalidates sessions with a fixed TTL.
type Cache struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache returns a cache over store. A zero ttl selects DefaultTTL.
func NewCache(store Store, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// TTL is the lifetime applied to every new session.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Create stores payload under a fresh handle.
func (c *Cache) Create(ctx context.Context, payload []byte) (Handle, error) {
	h, err := newHandle()
	if err != nil {
		return "", errs.Store("generating session handle", err)
	}

	if err := c.store.Set(ctx, h.Key(), payload, c.ttl); err != nil {
		return "", errs.Store("creating session", err)
	}

	c.logger.Debug("session created", "ttl", c.ttl)
	return h, nil
}

// Read returns the payload stored for h, or ok == false when the session
// is unknown, expired, or h is malformed.
func (c *Cache) Read(ctx context.Context, h Handle) ([]byte, bool, error) {
	if !h.Valid() {
		return nil, false, nil
	}

	payload, ok, err := c.store.Get(ctx, h.Key())
	if err != nil {
		return nil, false, errs.Store("reading session", err)
	}
	return payload, ok, nil
}

// Invalidate removes the session. Invalidating an absent session succeeds.
func (c *Cache) Invalidate(ctx context.Context, h Handle) error {
	if !h.Valid() {
		return nil
	}

	if err := c.store.Delete(ctx, h.Key()); err != nil {
		return errs.Store("invalidating session", err)
	}

	c.logger.Debug("session invalidated")
	return nil
}

// Close closes the backing store.
func (c *Cache) Close() error {
	return c.store.Close()
}

func newHandle() (Handle, error) {
	b := make([]byte, handleBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return Handle(base64.RawURLEncoding.EncodeToString(b)), nil
}

// Package api provides the docchat HTTP API: login sessions, document
// management, retrieval-backed chat, and raw chunk search.
package api

// DefaultMaxUploadBytes is the request body limit when none is configured.
const DefaultMaxUploadBytes = 32 << 20

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// SecureCookies marks the session cookie Secure. Enable it whenever the
	// server is reached over HTTPS.
	SecureCookies bool

	// MaxUploadBytes caps request bodies, uploads included.
	MaxUploadBytes int
}

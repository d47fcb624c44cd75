// Package keys owns the process-wide secret used for keyed lookup hashing.
package keys

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"
)

// KeySize is the required key length in bytes (256 bits).
const KeySize = 32

// Provider holds the hashing key for the lifetime of the process.
type Provider struct {
	key       []byte
	ephemeral bool
}

// NewProvider builds a Provider from the configured hex-encoded secret.
// An empty secret generates a random ephemeral key and logs a warning:
// value-based lookups for mappings created before a restart will miss
// forever, since the new process hashes under a different key.
// A malformed or wrong-length secret is a startup error, not retried.
func NewProvider(hexKey string, logger zerolog.Logger) (*Provider, error) {
	if hexKey == "" {
		key := make([]byte, KeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
		}
		logger.Warn().Msg("no hashing key configured, generated ephemeral key; mappings will not be recoverable by value after restart")
		return &Provider{key: key, ephemeral: true}, nil
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode hashing key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("hashing key must be %d bytes, got %d", KeySize, len(key))
	}

	return &Provider{key: key}, nil
}

// Key returns the 256-bit hashing key.
func (p *Provider) Key() []byte {
	return p.key
}

// Ephemeral reports whether the key was generated at startup rather than
// configured.
func (p *Provider) Ephemeral() bool {
	return p.ephemeral
}

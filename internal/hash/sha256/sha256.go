// Package sha256 provides the SHA-256 digests used to seal checkpoint bodies.
package sha256

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Hasher implements screener.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a lowercase hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Verify reports whether digest is the hex SHA-256 of data. Comparison is
// case-insensitive and constant-time.
func (h *Hasher) Verify(data []byte, digest string) bool {
	want, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(digest)))
	if err != nil || len(want) != sha256.Size {
		return false
	}
	sum := sha256.Sum256(data)
	return subtle.ConstantTimeCompare(sum[:], want) == 1
}

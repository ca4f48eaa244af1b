// Package secret generates the opaque credentials handed out by the
// service: client ids and secrets, authorization codes and bearer
// tokens. Values are unguessable but carry no structure; uniqueness is
// enforced by the store's unique constraints, not here.
package secret

import (
	"crypto/rand"
	"fmt"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Generate returns a cryptographically unpredictable printable string
// of the requested length.
func Generate(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("secret length must be positive, got %d", length)
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	// Rejection sampling would remove the tiny modulo bias, but 62
	// symbols over 256 byte values keeps every character above 1/64
	// probability, which is ample for 40+ character credentials.
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}

// MustGenerate is Generate for callers that treat an unreadable random
// source as fatal.
func MustGenerate(length int) string {
	s, err := Generate(length)
	if err != nil {
		panic(err)
	}
	return s
}

// Package secrets generates single-use secrets (verification and reset
// tokens, MFA codes) and derives the digests stored in their place.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strings"
)

const (
	tokenBytes    = 32
	MfaCodeDigits = 6
)

// Generator draws from a cryptographically secure source.
type Generator struct {
	rand io.Reader
}

func NewGenerator() *Generator {
	return &Generator{rand: rand.Reader}
}

// NewToken returns 256 random bits, hex encoded.
func (g *Generator) NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := io.ReadFull(g.rand, b); err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewMfaCode returns a uniformly distributed 6-digit code, leading zeros kept.
func (g *Generator) NewMfaCode() (string, error) {
	var b strings.Builder
	b.Grow(MfaCodeDigits)

	ten := big.NewInt(10)
	for i := 0; i < MfaCodeDigits; i++ {
		n, err := rand.Int(g.rand, ten)
		if err != nil {
			return "", fmt.Errorf("read mfa digit: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// Digest is the at-rest form of a secret: SHA-256, hex encoded.
func Digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Matches compares a presented secret with a stored digest in constant time.
func Matches(secret, digest string) bool {
	if digest == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(Digest(secret)), []byte(digest)) == 1
}

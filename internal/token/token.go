// Package token implements bearer token syntax, generation and
// authentication for the update API.
//
// A token has the form zg_<alias>_<id>_<secret>, e.g.
// zg_myhost_1f8a40d2_5Yx...K2. The prefix part (scheme, alias and a
// random id that keeps prefixes unique across tokens sharing an alias)
// is stored in clear and indexed; the secret part is stored only as a
// SHA-256 hash.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// Scheme is the fixed first component of every issued token.
	Scheme = "zg"

	// MinLength and MaxLength bound the overall presented token.
	// The lower bound is deliberately loose so short test fixtures
	// remain valid tokens.
	MinLength = 20
	MaxLength = 128

	secretBytes   = 24
	prefixIDBytes = 4
)

// ErrSyntax is returned for tokens that fail the cheap syntactic checks
// performed before any store lookup.
var ErrSyntax = fmt.Errorf("malformed token")

// Generate creates a new token for the given alias and returns the raw
// token (shown to the owner exactly once), its prefix and the secret
// hash to persist.
func Generate(alias string) (raw, prefix, secretHash string, err error) {
	alias = sanitizeAlias(alias)
	if alias == "" {
		return "", "", "", fmt.Errorf("alias is required")
	}

	b := make([]byte, prefixIDBytes+secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", fmt.Errorf("failed to generate secret: %w", err)
	}
	id := hex.EncodeToString(b[:prefixIDBytes])
	secret := hex.EncodeToString(b[prefixIDBytes:])

	prefix = Scheme + "_" + alias + "_" + id
	raw = prefix + "_" + secret
	return raw, prefix, HashSecret(secret), nil
}

// Split validates token syntax and separates prefix from secret.
// It performs no store access.
func Split(presented string) (prefix, secret string, err error) {
	if len(presented) < MinLength || len(presented) > MaxLength {
		return "", "", ErrSyntax
	}
	for _, c := range presented {
		if !isTokenChar(c) {
			return "", "", ErrSyntax
		}
	}

	// prefix = scheme + alias, secret = everything after the last "_".
	idx := strings.LastIndexByte(presented, '_')
	if idx <= 0 || idx == len(presented)-1 {
		return "", "", ErrSyntax
	}
	prefix = presented[:idx]
	secret = presented[idx+1:]
	if !strings.HasPrefix(prefix, Scheme+"_") || len(prefix) == len(Scheme)+1 {
		return "", "", ErrSyntax
	}
	return prefix, secret, nil
}

// HashSecret returns the hex SHA-256 of a token secret.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// VerifySecret compares a presented secret against a stored hash in
// constant time.
func VerifySecret(secret, storedHash string) bool {
	computed := HashSecret(secret)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}

// Fingerprint returns a short, non-reversible identifier of a presented
// token suitable for audit logs. The raw secret never appears in it.
func Fingerprint(presented string) string {
	sum := sha256.Sum256([]byte(presented))
	return hex.EncodeToString(sum[:6])
}

func sanitizeAlias(alias string) string {
	alias = strings.TrimSpace(alias)
	var b strings.Builder
	for _, c := range alias {
		if isTokenChar(c) && c != '_' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func isTokenChar(c rune) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '_' || c == '-'
}

// Package forward owns the public address space of the service: slug
// rules, user key issuance and the resolution of /{user_key}/{slug}
// to a destination URL.
package forward

import (
	"crypto/rand"
	"fmt"

	"github.com/marque-app/marque/internal/domain"
)

const (
	slugMaxLen = 64

	// UserKeyLen is the length of generated user keys.
	UserKeyLen = 8

	// KeyAttempts bounds how often key issuance retries after a
	// uniqueness collision before giving up.
	KeyAttempts = 3
)

// keyCharset has 32 symbols so random bytes map onto it without
// modulo bias. Ambiguous glyphs (l, o, 0, 1) are left out.
const keyCharset = "abcdefghijkmnpqrstuvwxyz23456789"

// reservedKeys are first path segments owned by the application
// itself. They can never resolve as a user key.
var reservedKeys = map[string]bool{
	"api":     true,
	"healthz": true,
	"readyz":  true,
	"infra":   true,
}

// ReservedKey reports whether s is claimed by the application's own
// routing.
func ReservedKey(s string) bool {
	return reservedKeys[s]
}

// ValidateSlug checks the public short name: 1 to 64 characters from
// the URL-unreserved set. Comparison stays case-sensitive, so Report
// and report are different slugs.
func ValidateSlug(s string) error {
	if s == "" {
		return domain.Validationf("slug required")
	}
	if len(s) > slugMaxLen {
		return domain.Validationf("slug exceeds %d characters", slugMaxLen)
	}
	for i := 0; i < len(s); i++ {
		if !slugByte(s[i]) {
			return domain.Validationf("slug may only contain letters, digits, '.', '_', '~' and '-'")
		}
	}
	return nil
}

func slugByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '.', c == '_', c == '~', c == '-':
		return true
	}
	return false
}

// NewUserKey generates a random user key. Uniqueness is enforced by
// the store; callers retry up to KeyAttempts times on conflict.
func NewUserKey() (string, error) {
	buf := make([]byte, UserKeyLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate user key: %w", err)
	}
	for i := range buf {
		buf[i] = keyCharset[int(buf[i])%len(keyCharset)]
	}
	return string(buf), nil
}

package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

var ErrPasswordTooLong = errors.New("password longer than 72 bytes")

// HashPassword returns the bcrypt hash stored for a new password.
func HashPassword(plain string) (string, error) {
	if len(plain) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// IsHashed reports whether stored looks like a bcrypt hash.
func IsHashed(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") ||
		strings.HasPrefix(stored, "$2b$") ||
		strings.HasPrefix(stored, "$2y$")
}

// CheckPassword compares plain against the stored value. Rows written before
// hashing was introduced hold the password itself; those match by equality
// and are reported with needsRehash so the caller can upgrade them.
func CheckPassword(stored, plain string) (ok bool, needsRehash bool) {
	if !IsHashed(stored) {
		match := subtle.ConstantTimeCompare([]byte(stored), []byte(plain)) == 1
		return match, match
	}

	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(plain)) == nil, false
}

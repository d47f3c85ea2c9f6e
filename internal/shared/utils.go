// Package shared provides small helpers reused by the server packages.
package shared

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// MakeRandHexString generates size random bytes and returns them hex encoded,
// so the resulting string is 2*size characters long.
//
// It returns an error if the random number generator fails.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// IsBlank reports whether s is empty after trimming surrounding whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// AnyBlank reports whether at least one of values is blank.
func AnyBlank(values ...string) bool {
	for _, v := range values {
		if IsBlank(v) {
			return true
		}
	}
	return false
}

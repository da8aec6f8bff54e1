// Package fingerprint derives stable, non-reversible tokens for sensitive
// identifiers so they can be used as cache keys or log fields.
package fingerprint

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

const shortLen = 12

// Of returns the hex blake2b-256 digest of s.
func Of(s string) string {
	sum := blake2b.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Short returns a prefix of Of(s), long enough to tell log lines apart.
func Short(s string) string {
	return Of(s)[:shortLen]
}

package keys

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint derives a stable, non-reversible identifier for a credential.
// Used as a cache key and in audit trails so raw key material never has to
// travel or be stored alongside its verdict.
func Fingerprint(raw string) string {
	sum := blake2b.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:16])
}

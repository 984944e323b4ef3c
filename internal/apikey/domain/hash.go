package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashAPIKey is a fast digest of a raw key, used to remember keys that already passed the
// argon2id check.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

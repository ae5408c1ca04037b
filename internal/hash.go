package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashIdentifier returns a stable key fragment for an email or IP so raw
// identifiers never appear in Redis key names.
func HashIdentifier(v string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(v))))
	return hex.EncodeToString(sum[:16])
}

package crypto

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint hashes the parts joined with "-" and returns the hex digest
func Fingerprint(parts ...string) string {
	sum := blake2b.Sum256([]byte(strings.Join(parts, "-")))
	return hex.EncodeToString(sum[:])
}

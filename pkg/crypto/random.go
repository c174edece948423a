package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
)

var randomRead = rand.Read

// RandomString returns n symbols drawn uniformly from alphabet.
// The alphabet length must divide 256 so a byte maps to a symbol without bias.
func RandomString(alphabet string, n int) (string, error) {
	size := len(alphabet)
	if size == 0 || 256%size != 0 {
		return "", errors.New("alphabet length must divide 256")
	}

	buf := make([]byte, n)
	if _, err := randomRead(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	out := make([]byte, n)
	for i, b := range buf {
		out[i] = alphabet[int(b)%size]
	}
	return string(out), nil
}

package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
)

// RandomFill fills b with cryptographically secure random bytes. Every
// cookie and nonce draws fresh entropy through this. Failure of the system
// RNG is terminal for the endpoint.
func RandomFill(b []byte) error {
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return fmt.Errorf("%w: %v", ErrCryptoInit, err)
	}
	return nil
}

package api

import (
	"crypto/rand"
	"encoding/hex"
)

// newToken mints a user token: 64 lowercase hex characters, 256 bits of
// entropy.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

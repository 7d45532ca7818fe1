package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
)

// RawTokenBytes is the entropy of a single-use token. Hex encoding doubles it to 72 characters,
// which is exactly bcrypt's input limit.
const RawTokenBytes = 36

// GenerateRawToken returns n bytes from crypto/rand, hex-encoded.
func GenerateRawToken(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("token length must be positive")
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

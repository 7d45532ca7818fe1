package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// DigestRefreshToken returns the hex SHA-256 digest of a refresh token. The user's refresh set
// stores digests, never the signed token itself.
func DigestRefreshToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

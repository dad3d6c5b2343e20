package tenant

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

const tokenBytes = 32

// HashToken returns the lookup hash stored for an outlet access token.
// Only the digest is persisted; the raw token is shown once at creation.
func HashToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GenerateToken creates a new opaque outlet access token.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate outlet token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

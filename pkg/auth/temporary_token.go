package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// TemporaryToken is a single-use token for email verification and password
// reset. Only Hashed is stored; Raw is mailed to the user.
type TemporaryToken struct {
	Raw    string
	Hashed string
	Expiry time.Time
}

// NewTemporaryToken generates a random token valid for ttl
func NewTemporaryToken(ttl time.Duration) (*TemporaryToken, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	raw := hex.EncodeToString(b)
	return &TemporaryToken{
		Raw:    raw,
		Hashed: HashToken(raw),
		Expiry: time.Now().Add(ttl),
	}, nil
}

// HashToken returns the sha256 hex digest stored for a raw token
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

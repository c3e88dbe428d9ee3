package store

import (
	"crypto/rand"
	"encoding/hex"
)

const tokenBytes = 32

// NewToken returns a hex-encoded random session token.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

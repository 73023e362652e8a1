package auth

import (
	"crypto/rand"
	"encoding/hex"
)

// NewSessionToken returns nBytes of crypto randomness, hex encoded.
func NewSessionToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 32
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

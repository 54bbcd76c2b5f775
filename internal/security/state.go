package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// stateBytes is the entropy of an OAuth state token
const stateBytes = 32

// NewOAuthState returns a random hex-encoded CSRF state
func NewOAuthState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

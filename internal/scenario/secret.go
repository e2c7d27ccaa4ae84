package scenario

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const secretBytes = 32

// GenerateSecret returns 32 random bytes hex-encoded, the shape of the tool's encryption key.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

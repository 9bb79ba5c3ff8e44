package services

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateState returns 16 random bytes as URL-safe base64, used as the
// OAuth state parameter.
func GenerateState() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}


package utils

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"time"
)

// GenerateAPIKey creates a project tracking API key ("fb_" + 32 hex chars).
func GenerateAPIKey() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		log.Printf("ERROR: Failed to generate random bytes for API key: %v", err)
		return "fb_fallback_" + time.Now().Format("20060102150405")
	}
	return "fb_" + hex.EncodeToString(b)
}

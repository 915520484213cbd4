package utils

import (
	"encoding/hex"
	"fmt"
	"net/url"
)

func ValidateHTTPURL(urlStr string) error {
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("URL must start with https:// or http://")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// ValidateHex32 checks that s is the hex encoding of exactly 32 bytes,
// the shape of payment hashes and preimages.
func ValidateHex32(s string) error {
	if len(s) != 64 {
		return fmt.Errorf("expected 64 hex characters, got %d", len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}
	return nil
}

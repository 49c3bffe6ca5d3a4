package trust

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"
)

// ParsePublicKeyHex decodes a 64-character hex ed25519 public key. PEM and
// PGP blobs are rejected with a pointed error since operators occasionally
// paste the wrong key material.
func ParsePublicKeyHex(input string) (ed25519.PublicKey, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, fmt.Errorf("publisher key is required")
	}
	upper := strings.ToUpper(trimmed)
	if strings.Contains(upper, "BEGIN") || strings.Contains(upper, "PRIVATE") {
		return nil, fmt.Errorf("publisher key must be a %d-character hex string, not a PEM/PGP blob", ed25519.PublicKeySize*2)
	}
	if len(trimmed) != ed25519.PublicKeySize*2 {
		return nil, fmt.Errorf("publisher key must be %d hex characters (got %d)", ed25519.PublicKeySize*2, len(trimmed))
	}
	key, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("publisher key must contain only hexadecimal characters")
	}
	return ed25519.PublicKey(key), nil
}

// IsHexDigest reports whether value is a hex string of the expected length.
// expectedLen of 0 accepts any even length.
func IsHexDigest(value string, expectedLen int) bool {
	if expectedLen > 0 && len(value) != expectedLen {
		return false
	}
	if len(value)%2 != 0 {
		return false
	}
	for _, ch := range value {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') && (ch < 'A' || ch > 'F') {
			return false
		}
	}
	return true
}

package trust

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/jedisct1/go-minisign"
)

const (
	FormatBinary   = "binary"
	FormatMinisign = "minisign"
)

// SignatureData is a signature file whose format was sniffed from its
// contents.
type SignatureData struct {
	Format string
	Bytes  []byte
}

// LoadSignatureFile reads a detached signature and detects its format:
// minisign ("untrusted comment:" header), raw 64-byte ed25519, or hex.
func LoadSignatureFile(path string) (SignatureData, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-chosen signature path
	if err != nil {
		return SignatureData{}, fmt.Errorf("read signature: %w", err)
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "untrusted comment:") {
		return SignatureData{Format: FormatMinisign, Bytes: data}, nil
	}
	if len(data) == ed25519.SignatureSize {
		return SignatureData{Format: FormatBinary, Bytes: data}, nil
	}
	decoded, err := hex.DecodeString(trimmed)
	if err == nil && len(decoded) == ed25519.SignatureSize {
		return SignatureData{Format: FormatBinary, Bytes: decoded}, nil
	}
	return SignatureData{}, fmt.Errorf("unsupported signature format in %s", path)
}

// VerifyMinisign checks a minisign signature over content. Operators who
// publish manifests signed with minisign keys use this path instead of raw
// hex ed25519.
func VerifyMinisign(content []byte, sigPath, pubKeyPath string) error {
	pubKey, err := minisign.NewPublicKeyFromFile(pubKeyPath)
	if err != nil {
		return fmt.Errorf("read minisign pubkey: %w", err)
	}

	sig, err := minisign.NewSignatureFromFile(sigPath)
	if err != nil {
		return fmt.Errorf("read minisign signature: %w", err)
	}

	return verifyMinisign(content, pubKey, sig)
}

// VerifyMinisignData is VerifyMinisign for in-memory content: sig holds a
// .minisig file body and pubKey the base64 key string (without comment
// lines).
func VerifyMinisignData(content, sig []byte, pubKey string) error {
	key, err := minisign.NewPublicKey(strings.TrimSpace(pubKey))
	if err != nil {
		return fmt.Errorf("parse minisign pubkey: %w", err)
	}

	decoded, err := minisign.DecodeSignature(string(sig))
	if err != nil {
		return fmt.Errorf("parse minisign signature: %w", err)
	}

	return verifyMinisign(content, key, decoded)
}

func verifyMinisign(content []byte, pubKey minisign.PublicKey, sig minisign.Signature) error {
	valid, err := pubKey.Verify(content, sig)
	if err != nil {
		return fmt.Errorf("minisign: verification error: %w", err)
	}
	if !valid {
		return fmt.Errorf("minisign: signature verification failed")
	}
	return nil
}

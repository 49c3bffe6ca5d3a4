// Package trust verifies release artifacts against their signed manifest.
//
// Verification is two-step and both steps are mandatory: the artifact digest
// must match the manifest, and the manifest signature over that digest must
// verify against the publisher key. An artifact whose digest matches but
// whose manifest carries no signature is reported as unsigned, never as
// verified.
package trust

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/helios-node/helios/internal/manifest"
	"github.com/helios-node/helios/pkg/update"
)

// HashMismatchError reports an artifact whose digest differs from the
// manifest.
type HashMismatchError struct {
	Expected string
	Actual   string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("artifact digest mismatch: manifest says %s, got %s", e.Expected, e.Actual)
}

// SignatureMismatchError reports a signature that does not verify against
// the publisher key.
type SignatureMismatchError struct {
	Version string
}

func (e *SignatureMismatchError) Error() string {
	return fmt.Sprintf("manifest signature for version %s does not verify against the publisher key", e.Version)
}

// UnsignedError reports a manifest that carries no signature at all.
type UnsignedError struct {
	Version string
}

func (e *UnsignedError) Error() string {
	return fmt.Sprintf("manifest for version %s is unsigned", e.Version)
}

// VersionBelowMinimumError reports a release older than the verifier's
// configured floor.
type VersionBelowMinimumError struct {
	Version string
	Minimum string
}

func (e *VersionBelowMinimumError) Error() string {
	return fmt.Sprintf("release version %s is below the required minimum %s", e.Version, e.Minimum)
}

// Verifier checks artifacts against manifests signed by a publisher key.
type Verifier struct {
	publisherKey ed25519.PublicKey

	// MinVersion, when set, rejects any release older than this version.
	MinVersion string
}

// NewVerifier builds a Verifier from a 64-character hex publisher key.
func NewVerifier(publisherKeyHex string) (*Verifier, error) {
	key, err := ParsePublicKeyHex(publisherKeyHex)
	if err != nil {
		return nil, err
	}
	return &Verifier{publisherKey: key}, nil
}

// Verify checks artifact bytes against rel. It returns nil only when the
// digest matches AND the signature over the digest verifies. The error is
// one of HashMismatchError, SignatureMismatchError, UnsignedError, or
// VersionBelowMinimumError.
func (v *Verifier) Verify(rel *manifest.Release, artifact []byte) error {
	if v.MinVersion != "" {
		relNorm, relOK := update.NormalizeVersion(rel.Version)
		minNorm, minOK := update.NormalizeVersion(v.MinVersion)
		if relOK && minOK {
			if cmp, err := update.CompareSemver(relNorm, minNorm); err == nil && cmp < 0 {
				return &VersionBelowMinimumError{Version: rel.Version, Minimum: v.MinVersion}
			}
		}
	}

	digest := sha256.Sum256(artifact)
	actual := hex.EncodeToString(digest[:])
	if actual != rel.SHA256 {
		return &HashMismatchError{Expected: rel.SHA256, Actual: actual}
	}

	if rel.Signature == "" {
		return &UnsignedError{Version: rel.Version}
	}
	sig, err := hex.DecodeString(rel.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return &SignatureMismatchError{Version: rel.Version}
	}

	// The publisher signs the raw 32-byte digest, not its hex encoding.
	if !ed25519.Verify(v.publisherKey, digest[:], sig) {
		return &SignatureMismatchError{Version: rel.Version}
	}
	return nil
}

// SignDigest produces the manifest signature for an artifact digest. Used by
// the release tooling; the agent itself only ever verifies.
func SignDigest(priv ed25519.PrivateKey, artifact []byte) string {
	digest := sha256.Sum256(artifact)
	return hex.EncodeToString(ed25519.Sign(priv, digest[:]))
}

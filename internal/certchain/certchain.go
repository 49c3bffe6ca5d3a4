// Package certchain validates snapshot certificate chains.
//
// A snapshot is only trusted after its certificate chain walks back from the
// leaf to a genesis anchor, with a stake-weighted signer quorum at every hop.
// Validation rejects at the first failing hop.
package certchain

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Walking more hops than this means the chain is malformed or cyclic.
const maxChainDepth = 1000

// Signer is one participant whose signature is aggregated in a certificate.
type Signer struct {
	PartyID string `json:"party_id"`
	Stake   uint64 `json:"stake"`
}

// Metadata carries the signer-set totals the certificate was sealed under.
type Metadata struct {
	TotalSigners int       `json:"total_signers"`
	TotalStake   uint64    `json:"total_stake"`
	SealedAt     time.Time `json:"sealed_at"`
}

// Certificate is one link in the chain. A certificate carries either a
// multi-signature (regular link) or a genesis signature (anchor).
type Certificate struct {
	Hash                     string   `json:"hash"`
	PreviousHash             string   `json:"previous_hash"`
	Epoch                    uint64   `json:"epoch"`
	SignedMessage            string   `json:"signed_message"`
	AggregateVerificationKey string   `json:"aggregate_verification_key"`
	MultiSignature           string   `json:"multi_signature"`
	GenesisSignature         string   `json:"genesis_signature"`
	Signers                  []Signer `json:"signers"`
	Metadata                 Metadata `json:"metadata"`
}

// IsGenesis reports whether this certificate anchors the chain.
func (c *Certificate) IsGenesis() bool {
	return c.GenesisSignature != "" || c.PreviousHash == ""
}

// Provider resolves certificates by hash, typically from the aggregator.
type Provider interface {
	Certificate(ctx context.Context, hash string) (*Certificate, error)
}

// Result is returned on successful validation.
type Result struct {
	Epoch uint64
	Depth int
}

// Validator walks certificate chains down to the genesis anchor.
type Validator struct {
	provider   Provider
	genesisKey ed25519.PublicKey

	// MaxEpoch bounds acceptable certificate epochs; zero means unbounded.
	MaxEpoch uint64
	// AnchorWindow is how old a genesis anchor may be before it is
	// considered expired.
	AnchorWindow time.Duration

	now    func() time.Time
	logger zerolog.Logger
}

// NewValidator builds a Validator. genesisKeyHex is the network's genesis
// verification key in the aggregator's hex-of-JSON-array encoding.
func NewValidator(provider Provider, genesisKeyHex string, anchorWindow time.Duration, logger zerolog.Logger) (*Validator, error) {
	key, err := ParseGenesisKey(genesisKeyHex)
	if err != nil {
		return nil, err
	}
	return &Validator{
		provider:     provider,
		genesisKey:   key,
		AnchorWindow: anchorWindow,
		now:          time.Now,
		logger:       logger,
	}, nil
}

// Validate walks the chain from leafHash to the genesis anchor. It returns
// the leaf epoch on success; on failure the error is one of
// QuorumNotMetError, BrokenChainError, EpochOutOfRangeError, or
// ExpiredAnchorError, reported at the first hop that fails.
func (v *Validator) Validate(ctx context.Context, leafHash string) (Result, error) {
	seen := make(map[string]struct{})
	var leafEpoch uint64
	var prevEpoch uint64

	hash := leafHash
	for depth := 0; depth < maxChainDepth; depth++ {
		if _, ok := seen[hash]; ok {
			return Result{}, fmt.Errorf("certificate chain cycle detected at %s", hash)
		}
		seen[hash] = struct{}{}

		cert, err := v.provider.Certificate(ctx, hash)
		if err != nil {
			return Result{}, &BrokenChainError{Hash: hash, cause: err}
		}
		if cert == nil {
			return Result{}, &BrokenChainError{Hash: hash}
		}

		if depth == 0 {
			leafEpoch = cert.Epoch
			if v.MaxEpoch > 0 && cert.Epoch > v.MaxEpoch {
				return Result{}, &EpochOutOfRangeError{Epoch: cert.Epoch, Max: v.MaxEpoch}
			}
		} else {
			// Epochs may only stay flat or step down by one toward genesis.
			if cert.Epoch > prevEpoch || prevEpoch-cert.Epoch > 1 {
				return Result{}, &EpochOutOfRangeError{Epoch: cert.Epoch, Max: prevEpoch}
			}
		}
		prevEpoch = cert.Epoch

		if err := v.verifyHop(cert); err != nil {
			return Result{}, err
		}

		if cert.IsGenesis() {
			v.logger.Debug().
				Str("leaf", leafHash).
				Int("depth", depth+1).
				Uint64("epoch", leafEpoch).
				Msg("certificate chain anchored at genesis")
			return Result{Epoch: leafEpoch, Depth: depth + 1}, nil
		}
		hash = cert.PreviousHash
	}

	return Result{}, fmt.Errorf("certificate chain exceeds %d hops from %s", maxChainDepth, leafHash)
}

// verifyHop checks a single certificate: signer quorum for regular links,
// genesis signature and anchor freshness for the anchor.
func (v *Validator) verifyHop(cert *Certificate) error {
	if cert.IsGenesis() {
		return v.verifyGenesis(cert)
	}
	return v.verifyQuorum(cert)
}

func (v *Validator) verifyQuorum(cert *Certificate) error {
	total := cert.Metadata.TotalStake
	if total == 0 {
		return &QuorumNotMetError{Hash: cert.Hash, Got: 0, Needed: 1}
	}
	needed := total * 2 / 3

	var tallied uint64
	for _, signer := range cert.Signers {
		tallied += signer.Stake
		if tallied > needed {
			return nil
		}
	}
	return &QuorumNotMetError{Hash: cert.Hash, Got: tallied, Needed: needed + 1}
}

func (v *Validator) verifyGenesis(cert *Certificate) error {
	sig, err := hex.DecodeString(cert.GenesisSignature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return &BrokenChainError{Hash: cert.Hash, cause: fmt.Errorf("malformed genesis signature")}
	}
	if !ed25519.Verify(v.genesisKey, []byte(cert.SignedMessage), sig) {
		return &BrokenChainError{Hash: cert.Hash, cause: fmt.Errorf("genesis signature does not verify")}
	}
	if v.AnchorWindow > 0 && !cert.Metadata.SealedAt.IsZero() {
		age := v.now().Sub(cert.Metadata.SealedAt)
		if age > v.AnchorWindow {
			return &ExpiredAnchorError{SealedAt: cert.Metadata.SealedAt, Window: v.AnchorWindow}
		}
	}
	return nil
}

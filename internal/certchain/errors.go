package certchain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// QuorumNotMetError reports a certificate whose aggregated signer stake does
// not reach the two-thirds threshold.
type QuorumNotMetError struct {
	Hash   string
	Got    uint64
	Needed uint64
}

func (e *QuorumNotMetError) Error() string {
	return fmt.Sprintf("certificate %s: signer stake %d below required %d", e.Hash, e.Got, e.Needed)
}

// BrokenChainError reports a hop whose certificate is missing or whose
// anchor material is malformed. A dangling previous_hash is a broken chain,
// regardless of how healthy the signer set looked.
type BrokenChainError struct {
	Hash  string
	cause error
}

func (e *BrokenChainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("certificate chain broken at %s: %v", e.Hash, e.cause)
	}
	return fmt.Sprintf("certificate chain broken at %s: certificate not found", e.Hash)
}

func (e *BrokenChainError) Unwrap() error { return e.cause }

// EpochOutOfRangeError reports a certificate whose epoch violates the
// monotonic no-gap walk or exceeds the validator's bound.
type EpochOutOfRangeError struct {
	Epoch uint64
	Max   uint64
}

func (e *EpochOutOfRangeError) Error() string {
	return fmt.Sprintf("certificate epoch %d out of range (max %d)", e.Epoch, e.Max)
}

// ExpiredAnchorError reports a genesis anchor sealed longer ago than the
// validity window allows.
type ExpiredAnchorError struct {
	SealedAt time.Time
	Window   time.Duration
}

func (e *ExpiredAnchorError) Error() string {
	return fmt.Sprintf("genesis anchor sealed at %s is older than the %s validity window",
		e.SealedAt.Format(time.RFC3339), e.Window)
}

// ParseGenesisKey decodes the aggregator's genesis verification key
// encoding: hex wrapping a JSON array of key bytes.
func ParseGenesisKey(keyHex string) ([]byte, error) {
	raw, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("genesis key is not valid hex: %w", err)
	}
	var values []int
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("genesis key payload is not a JSON byte array: %w", err)
	}
	if len(values) != 32 {
		return nil, fmt.Errorf("genesis key must be 32 bytes (got %d)", len(values))
	}
	key := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("genesis key byte %d out of range: %d", i, v)
		}
		key[i] = byte(v)
	}
	return key, nil
}

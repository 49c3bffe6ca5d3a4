// Package snapshot downloads and verifies chain snapshots for fast initial
// sync.
package snapshot

import (
	"fmt"
	"time"
)

// Beacon pins a snapshot to a point on the chain.
type Beacon struct {
	Epoch               uint64 `json:"epoch"`
	ImmutableFileNumber uint64 `json:"immutable_file_number"`
}

// Snapshot is one published snapshot as listed by the aggregator.
type Snapshot struct {
	Digest               string    `json:"digest"`
	Network              string    `json:"network"`
	Beacon               Beacon    `json:"beacon"`
	CertificateHash      string    `json:"certificate_hash"`
	Size                 uint64    `json:"size"`
	Locations            []string  `json:"locations"`
	CompressionAlgorithm string    `json:"compression_algorithm"`
	CreatedAt            time.Time `json:"created_at"`
}

// ArchiveName is the final on-disk name for a downloaded snapshot.
func (s *Snapshot) ArchiveName() string {
	switch s.CompressionAlgorithm {
	case "zstandard", "zstd":
		return s.Digest + ".tar.zst"
	case "gzip":
		return s.Digest + ".tar.gz"
	default:
		return s.Digest + ".tar"
	}
}

// Extraction roughly doubles the footprint, plus headroom for the node to
// start compacting; 2.5x the archive size has to be free before a single
// byte is transferred.
const (
	marginNumerator   = 5
	marginDenominator = 2
)

// RequiredBytes returns the disk space a snapshot of the given archive size
// needs end to end.
func RequiredBytes(size uint64) uint64 {
	return size * marginNumerator / marginDenominator
}

// InsufficientSpaceError reports a download refused before transfer because
// the target cannot hold the extracted snapshot.
type InsufficientSpaceError struct {
	Needed    uint64
	Available uint64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space for snapshot: %d bytes needed, %d available", e.Needed, e.Available)
}

// DigestMismatchError reports a completed transfer whose content hash does
// not match the advertised digest. The partial file is already gone by the
// time this is returned.
type DigestMismatchError struct {
	Expected string
	Actual   string
}

func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("snapshot digest mismatch: expected %s, got %s", e.Expected, e.Actual)
}

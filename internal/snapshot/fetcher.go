package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/disk"

	"github.com/helios-node/helios/internal/transport"
)

// Fetcher downloads snapshot archives with resume support.
type Fetcher struct {
	client *transport.Client
	logger zerolog.Logger

	// freeBytes is swappable for tests.
	freeBytes func(path string) (uint64, error)
}

// NewFetcher builds a Fetcher.
func NewFetcher(client *transport.Client, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		logger: logger,
		freeBytes: func(path string) (uint64, error) {
			stat, err := disk.Usage(path)
			if err != nil {
				return 0, err
			}
			return stat.Free, nil
		},
	}
}

// Download transfers snap into destDir and returns the final archive path.
//
// The disk capacity check runs before any byte is transferred. An
// interrupted transfer leaves a .part file that the next call resumes from
// its byte offset; a digest mismatch after completion discards the partial
// so a corrupt mirror cannot wedge the retry loop.
func (f *Fetcher) Download(ctx context.Context, snap *Snapshot, destDir string) (string, error) {
	partPath := filepath.Join(destDir, snap.Digest+".part")
	finalPath := filepath.Join(destDir, snap.ArchiveName())

	required := RequiredBytes(snap.Size)
	if info, err := os.Stat(partPath); err == nil {
		// Bytes already on disk from an earlier attempt don't need room a
		// second time, so a nearly complete resume is not refused.
		if have := uint64(info.Size()); have < required {
			required -= have
		} else {
			required = 0
		}
	}
	free, err := f.freeBytes(destDir)
	if err != nil {
		return "", fmt.Errorf("probe free space in %s: %w", destDir, err)
	}
	if free < required {
		return "", &InsufficientSpaceError{Needed: required, Available: free}
	}

	var lastErr error
	for _, location := range snap.Locations {
		if err := f.transfer(ctx, location, partPath); err != nil {
			lastErr = err
			f.logger.Warn().Str("location", location).Err(err).Msg("snapshot location failed")
			continue
		}

		actual, err := fileDigest(partPath)
		if err != nil {
			return "", err
		}
		if actual != snap.Digest {
			os.Remove(partPath)
			return "", &DigestMismatchError{Expected: snap.Digest, Actual: actual}
		}

		if err := os.Rename(partPath, finalPath); err != nil {
			return "", fmt.Errorf("move verified snapshot into place: %w", err)
		}
		f.logger.Info().Str("digest", snap.Digest).Str("path", finalPath).Msg("snapshot downloaded and verified")
		return finalPath, nil
	}

	if lastErr != nil {
		return "", fmt.Errorf("all snapshot locations failed: %w", lastErr)
	}
	return "", fmt.Errorf("snapshot %s lists no download locations", snap.Digest)
}

// transfer appends url's content to partPath, resuming from the existing
// byte offset when the server honors Range.
func (f *Fetcher) transfer(ctx context.Context, url, partPath string) error {
	var offset int64
	if info, err := os.Stat(partPath); err == nil {
		offset = info.Size()
	}

	resp, err := f.client.GetRange(ctx, url, offset)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		// resume confirmed
	case http.StatusOK:
		// Server ignored the Range header; start over.
		offset = 0
	default:
		return fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
		f.logger.Info().Int64("offset", offset).Msg("resuming snapshot transfer")
	} else {
		flags |= os.O_TRUNC
	}
	out, err := os.OpenFile(partPath, flags, 0o644) // #nosec G304 -- path derived from snapshot digest
	if err != nil {
		return fmt.Errorf("open partial file: %w", err)
	}

	_, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil {
		return fmt.Errorf("transfer %s: %w", url, copyErr)
	}
	return closeErr
}

func fileDigest(path string) (string, error) {
	file, err := os.Open(path) // #nosec G304 -- path derived from snapshot digest
	if err != nil {
		return "", fmt.Errorf("open for digest: %w", err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

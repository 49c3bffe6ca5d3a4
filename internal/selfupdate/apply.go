// Package selfupdate swaps the installed binary for a verified replacement.
package selfupdate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/helios-node/helios/internal/install"
)

// DownloadIncompleteError reports a payload shorter or longer than the
// manifest promised. Nothing is swapped.
type DownloadIncompleteError struct {
	Got  int64
	Want int64
}

func (e *DownloadIncompleteError) Error() string {
	return fmt.Sprintf("downloaded %d bytes, manifest promises %d", e.Got, e.Want)
}

// TrustVerificationFailedError wraps a trust failure encountered during an
// update. The installed binary is untouched.
type TrustVerificationFailedError struct {
	Cause error
}

func (e *TrustVerificationFailedError) Error() string {
	return fmt.Sprintf("update rejected: %v", e.Cause)
}

func (e *TrustVerificationFailedError) Unwrap() error { return e.Cause }

// SwapFailedError reports a failed binary swap. The previous binary is left
// in place.
type SwapFailedError struct {
	Target string
	Cause  error
}

func (e *SwapFailedError) Error() string {
	return fmt.Sprintf("swap %s: %v", e.Target, e.Cause)
}

func (e *SwapFailedError) Unwrap() error { return e.Cause }

// Applier installs verified binaries with an atomic rename.
type Applier struct {
	logger zerolog.Logger

	// packageRef returns the outer package file when running from a mounted
	// package image, or "" for a normal install. Swappable for tests.
	packageRef    func() string
	readOnlyMount func(string) bool
}

// NewApplier builds an Applier.
func NewApplier(logger zerolog.Logger) *Applier {
	return &Applier{
		logger:        logger,
		packageRef:    func() string { return os.Getenv("APPIMAGE") },
		readOnlyMount: install.IsReadOnlyMount,
	}
}

// Apply writes payload over targetPath via temp-file-plus-rename. When the
// process runs from a read-only package image the mounted file cannot be
// replaced, so the outer package reference is swapped instead. expectedSize
// of 0 skips the size check.
func (a *Applier) Apply(payload []byte, expectedSize int64, targetPath string) error {
	if expectedSize > 0 && int64(len(payload)) != expectedSize {
		return &DownloadIncompleteError{Got: int64(len(payload)), Want: expectedSize}
	}

	target := targetPath
	if ref := a.packageRef(); ref != "" {
		a.logger.Info().Str("package", ref).Msg("running from package image; replacing outer package file")
		target = ref
	} else if a.readOnlyMount(filepath.Dir(targetPath)) {
		return &SwapFailedError{Target: targetPath, Cause: fmt.Errorf("target is on a read-only mount and no package reference is set")}
	}

	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".new-*")
	if err != nil {
		return &SwapFailedError{Target: target, Cause: err}
	}
	tmpPath := tmp.Name()
	cleanup := func() { os.Remove(tmpPath) }

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		cleanup()
		return &SwapFailedError{Target: target, Cause: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &SwapFailedError{Target: target, Cause: err}
	}
	if err := os.Chmod(tmpPath, 0o755); err != nil {
		cleanup()
		return &SwapFailedError{Target: target, Cause: err}
	}

	backup := target + ".backup"
	hadPrevious := false
	if _, err := os.Stat(target); err == nil {
		hadPrevious = true
		os.Remove(backup)
		if err := os.Rename(target, backup); err != nil {
			cleanup()
			return &SwapFailedError{Target: target, Cause: err}
		}
	}

	if err := os.Rename(tmpPath, target); err != nil {
		if hadPrevious {
			// Put the working binary back before reporting.
			if restoreErr := os.Rename(backup, target); restoreErr != nil {
				a.logger.Error().Err(restoreErr).Str("backup", backup).Msg("restore after failed swap also failed")
			}
		}
		cleanup()
		return &SwapFailedError{Target: target, Cause: err}
	}

	a.logger.Info().Str("target", target).Msg("binary replaced")
	return nil
}

// Package meta records what is currently installed.
//
// The record is deliberately small and forward compatible: loading ignores
// fields written by newer agent versions instead of failing.
package meta

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/creachadair/atomicfile"
)

const FileName = "installed.json"

// Record describes the installed node binary.
type Record struct {
	InstalledVersion string    `json:"installed_version"`
	InstalledDigest  string    `json:"installed_digest"`
	InstalledAt      time.Time `json:"installed_at"`
}

// Load reads the record from dataDir. A missing file returns (nil, nil):
// nothing installed yet is not an error.
func Load(dataDir string) (*Record, error) {
	path := filepath.Join(dataDir, FileName)
	data, err := os.ReadFile(path) // #nosec G304 -- path under the data dir
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &rec, nil
}

// Save writes the record atomically.
func Save(dataDir string, rec Record) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode install record: %w", err)
	}
	path := filepath.Join(dataDir, FileName)
	if err := atomicfile.WriteData(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

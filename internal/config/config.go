// Package config loads and persists the agent configuration.
//
// Settings live in a TOML file inside the data directory. Network presets
// (aggregator endpoints, genesis verification keys) are embedded in the
// binary and selected by network name.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/creachadair/atomicfile"
)

const FileName = "helios.toml"

// Config is the on-disk agent configuration.
type Config struct {
	Network           string `toml:"network"`
	DataDir           string `toml:"data_dir"`
	UpdateManifestURL string `toml:"update_manifest_url"`
	AutoUpdate        bool   `toml:"auto_update"`
	NodePort          int    `toml:"node_port"`

	// UpdateMinisignKey pins a minisign public key (base64 key string); when
	// set, release manifests must carry a verifying .minisig sidecar.
	UpdateMinisignKey string `toml:"update_minisign_key"`
}

// Default returns the built-in configuration for a network.
func Default(network, dataDir string) Config {
	return Config{
		Network:           network,
		DataDir:           dataDir,
		UpdateManifestURL: "https://releases.helios.network/version.json",
		AutoUpdate:        true,
		NodePort:          3001,
	}
}

// LoadOrCreate reads the config file under dataDir, creating it with
// defaults when absent. Explicit arguments win over file contents.
func LoadOrCreate(path, dataDir, network string) (Config, error) {
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	if path == "" {
		path = filepath.Join(dataDir, FileName)
	}

	cfg := Default(network, dataDir)
	data, err := os.ReadFile(path) // #nosec G304 -- operator-chosen config path
	switch {
	case err == nil:
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		if err := Write(path, cfg); err != nil {
			return Config{}, err
		}
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	// CLI overrides beat whatever the file says.
	if network != "" {
		cfg.Network = network
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if _, err := Preset(cfg.Network); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Write persists cfg at path, creating parent directories as needed.
func Write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := atomicfile.WriteData(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Init writes the default config for a network, refusing to clobber an
// existing file unless force is set.
func Init(dataDir, network string, force bool) (string, error) {
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	path := filepath.Join(dataDir, FileName)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
	}
	if err := Write(path, Default(network, dataDir)); err != nil {
		return "", err
	}
	return path, nil
}

// DefaultDataDir prefers a "data" directory beside the executable so the
// whole installation stays self-contained; when that location is not
// writable it falls back to the per-user data directory.
func DefaultDataDir() string {
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		beside := filepath.Join(filepath.Dir(exe), "data")
		if dirWritable(filepath.Dir(exe)) {
			return beside
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "helios")
	}
	return filepath.Join(os.TempDir(), "helios")
}

func dirWritable(dir string) bool {
	probe, err := os.CreateTemp(dir, ".helios-write-*")
	if err != nil {
		return false
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return true
}

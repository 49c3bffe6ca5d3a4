package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateWritesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadOrCreate("", dir, "preview")
	require.NoError(t, err)
	require.Equal(t, "preview", cfg.Network)
	require.Equal(t, dir, cfg.DataDir)
	require.True(t, cfg.AutoUpdate)

	// The file must now exist and round-trip.
	reloaded, err := LoadOrCreate("", dir, "preview")
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestLoadOrCreateFlagOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, Write(path, Default("mainnet", dir)))

	cfg, err := LoadOrCreate(path, dir, "preprod")
	require.NoError(t, err)
	require.Equal(t, "preprod", cfg.Network)
}

func TestLoadOrCreateRejectsUnknownNetwork(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadOrCreate("", dir, "devnet-7")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown network")
}

func TestLoadOrCreateRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("network = [broken"), 0o644))

	_, err := LoadOrCreate(path, dir, "mainnet")
	require.Error(t, err)
}

func TestInitRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()

	path, err := Init(dir, "mainnet", false)
	require.NoError(t, err)
	require.FileExists(t, path)

	_, err = Init(dir, "mainnet", false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "already exists")

	_, err = Init(dir, "mainnet", true)
	require.NoError(t, err)
}

func TestEmbeddedPresets(t *testing.T) {
	t.Parallel()

	names := NetworkNames()
	require.Equal(t, []string{"mainnet", "preprod", "preview"}, names)

	preset, err := Preset("mainnet")
	require.NoError(t, err)
	require.NotEmpty(t, preset.AggregatorURL)
	require.NotEmpty(t, preset.GenesisVerificationKey)
	require.Positive(t, preset.AnchorValidityDays)

	_, err = Preset("testnet")
	require.Error(t, err)
}

package meta

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingIsNotInstalled(t *testing.T) {
	rec, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := Record{
		InstalledVersion: "2.0.0",
		InstalledDigest:  "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		InstalledAt:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, Save(dir, want))

	got, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, want, *got)
}

func TestLoadIgnoresUnknownFields(t *testing.T) {
	dir := t.TempDir()
	doc := `{
		"installed_version": "3.1.0",
		"installed_digest": "abc",
		"installed_at": "2027-01-01T00:00:00Z",
		"rollback_target": "3.0.0",
		"channel": "beta"
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(doc), 0o644))

	rec, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "3.1.0", rec.InstalledVersion)
}

func TestLoadRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{nope"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
}

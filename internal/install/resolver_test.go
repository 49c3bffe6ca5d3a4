package install

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testResolver(candidates ...string) *Resolver {
	return NewResolver(zerolog.Nop(), candidates...)
}

func TestResolvePicksFirstSufficient(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()

	r := testResolver(first, second)
	r.usage = func(string) (uint64, error) { return 1 << 40, nil }

	got, err := r.Resolve(1 << 20)
	require.NoError(t, err)
	require.Equal(t, first, got)
}

func TestResolveSkipsFullCandidate(t *testing.T) {
	small := t.TempDir()
	big := t.TempDir()

	r := testResolver(small, big)
	r.usage = func(path string) (uint64, error) {
		if path == small {
			return 100, nil
		}
		return 1 << 40, nil
	}

	got, err := r.Resolve(1 << 20)
	require.NoError(t, err)
	require.Equal(t, big, got)
}

func TestResolveDistinguishesUnwritableFromFull(t *testing.T) {
	if runtime.GOOS == "windows" || os.Getuid() == 0 {
		t.Skip("permission probes need a non-root unix user")
	}

	locked := filepath.Join(t.TempDir(), "locked")
	require.NoError(t, os.MkdirAll(locked, 0o555))
	full := t.TempDir()

	r := testResolver(filepath.Join(locked, "data"), full)
	r.usage = func(string) (uint64, error) { return 100, nil }

	_, err := r.Resolve(1 << 20)
	var noCand *NoCandidateSufficientError
	require.ErrorAs(t, err, &noCand)
	require.Len(t, noCand.Reports, 2)

	require.False(t, noCand.Reports[0].Writable)
	require.Contains(t, noCand.Reports[0].Detail, "unwritable")

	require.True(t, noCand.Reports[1].Writable)
	require.Contains(t, noCand.Reports[1].Detail, "insufficient space")
	require.Equal(t, uint64(100), noCand.Reports[1].AvailableBytes)
}

func TestResolveRejectsReadOnlyPackageMount(t *testing.T) {
	mounted := t.TempDir()
	normal := t.TempDir()

	r := testResolver(mounted, normal)
	r.usage = func(string) (uint64, error) { return 1 << 40, nil }
	r.readOnlyMount = func(path string) bool { return path == mounted }

	got, err := r.Resolve(1)
	require.NoError(t, err)
	require.Equal(t, normal, got)

	// With only the package mount on offer the resolver must fail and say
	// why, rather than report it as merely full.
	r = testResolver(mounted)
	r.usage = func(string) (uint64, error) { return 1 << 40, nil }
	r.readOnlyMount = func(string) bool { return true }

	_, err = r.Resolve(1)
	var noCand *NoCandidateSufficientError
	require.ErrorAs(t, err, &noCand)
	require.True(t, noCand.Reports[0].ReadOnlyMount)
	require.Contains(t, noCand.Reports[0].Detail, "read-only package mount")
}

func TestResolveReprobesEachCall(t *testing.T) {
	dir := t.TempDir()

	free := uint64(100)
	r := testResolver(dir)
	r.usage = func(string) (uint64, error) { return free, nil }

	_, err := r.Resolve(1 << 20)
	require.Error(t, err)

	// Space was reclaimed between calls; the resolver must notice.
	free = 1 << 40
	got, err := r.Resolve(1 << 20)
	require.NoError(t, err)
	require.Equal(t, dir, got)
}

func TestResolveUsageErrorIsReported(t *testing.T) {
	dir := t.TempDir()

	r := testResolver(dir)
	r.usage = func(string) (uint64, error) { return 0, fmt.Errorf("statfs blew up") }

	_, err := r.Resolve(1)
	var noCand *NoCandidateSufficientError
	require.ErrorAs(t, err, &noCand)
	require.Contains(t, noCand.Reports[0].Detail, "capacity unknown")
}

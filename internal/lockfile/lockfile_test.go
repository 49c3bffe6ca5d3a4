package lockfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func lockPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "helios.lock")
}

func TestAcquireRelease(t *testing.T) {
	path := lockPath(t)

	lock, err := Acquire(path)
	require.NoError(t, err)
	require.FileExists(t, path)

	require.NoError(t, lock.Release())
	require.NoFileExists(t, path)
}

func TestSecondAcquireFailsImmediately(t *testing.T) {
	path := lockPath(t)

	lock, err := Acquire(path)
	require.NoError(t, err)
	defer lock.Release()

	// Same process counts as a live holder: a second invocation must be
	// turned away, not queued.
	_, err = Acquire(path)
	var held *HeldError
	require.ErrorAs(t, err, &held)
	require.Equal(t, int32(os.Getpid()), held.PID)
}

func TestStaleLockIsBroken(t *testing.T) {
	path := lockPath(t)
	require.NoError(t, os.WriteFile(path, []byte("4194304\n"), 0o644))

	orig := pidAlive
	pidAlive = func(int32) bool { return false }
	defer func() { pidAlive = orig }()

	lock, err := Acquire(path)
	require.NoError(t, err)
	defer lock.Release()
}

func TestGarbledLockIsBroken(t *testing.T) {
	path := lockPath(t)
	require.NoError(t, os.WriteFile(path, []byte("not a pid"), 0o644))

	lock, err := Acquire(path)
	require.NoError(t, err)
	defer lock.Release()
}

func TestLiveLockSurvivesAcquireAttempt(t *testing.T) {
	path := lockPath(t)

	lock, err := Acquire(path)
	require.NoError(t, err)
	defer lock.Release()

	_, err = Acquire(path)
	require.Error(t, err)

	// The failed attempt must not have damaged the held lock.
	require.FileExists(t, path)
}

func TestReleaseTwiceIsSafe(t *testing.T) {
	path := lockPath(t)

	lock, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
	require.NoError(t, lock.Release())
}

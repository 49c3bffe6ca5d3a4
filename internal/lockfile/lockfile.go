// Package lockfile serializes downloads and updates across agent
// invocations.
//
// The lock is an advisory pid file created with O_EXCL. A lock whose owner
// pid is no longer alive is stale and gets broken; a live owner makes
// Acquire fail immediately instead of blocking, so a second invocation
// reports contention rather than queueing behind a multi-hour download.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// HeldError reports a lock owned by a live process.
type HeldError struct {
	Path string
	PID  int32
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("%s is held by running process %d", e.Path, e.PID)
}

// Lock is a held advisory lock.
type Lock struct {
	path string
}

// pidAlive is swappable for tests.
var pidAlive = func(pid int32) bool {
	alive, err := process.PidExists(pid)
	return err == nil && alive
}

// Acquire takes the lock at path or fails immediately. A stale lock (dead
// owner pid or unreadable content) is broken and reacquired once.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644) // #nosec G304 -- lock path under the data dir
		if err == nil {
			if _, err := fmt.Fprintf(file, "%d\n", os.Getpid()); err != nil {
				file.Close()
				os.Remove(path)
				return nil, fmt.Errorf("write lock: %w", err)
			}
			if err := file.Close(); err != nil {
				os.Remove(path)
				return nil, fmt.Errorf("write lock: %w", err)
			}
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock: %w", err)
		}

		owner, readErr := readOwner(path)
		if readErr == nil && pidAlive(owner) {
			return nil, &HeldError{Path: path, PID: owner}
		}
		// Stale or garbled: break it and retry once.
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("break stale lock: %w", err)
		}
	}
	return nil, fmt.Errorf("lock %s contended", path)
}

// Release drops the lock. Safe to call once per acquired lock.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

func readOwner(path string) (int32, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- lock path under the data dir
	if err != nil {
		return 0, err
	}
	pid, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 32)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("garbled lock content %q", strings.TrimSpace(string(data)))
	}
	return int32(pid), nil
}

//go:build linux

package install

import "os"

// IsReadOnlyMount reports whether destPath sits on a read-only mount, such
// as a squashfs package image. Best effort only: if anything looks odd,
// return false.
func IsReadOnlyMount(destPath string) bool {
	return mountHasFlag(destPath, "ro")
}

// IsNoExecMount reports whether destPath sits on a mount with the noexec
// flag.
func IsNoExecMount(destPath string) bool {
	return mountHasFlag(destPath, "noexec")
}

func mountHasFlag(destPath, flag string) bool {
	if destPath == "" {
		return false
	}

	// Try mountinfo first (more detailed, includes overlay setups).
	if data, err := os.ReadFile("/proc/self/mountinfo"); err == nil { // #nosec G304 -- fixed procfs path
		mounts := parseMountinfo(string(data))
		if len(mounts) > 0 {
			return detectMountFlag(destPath, flag, mounts)
		}
	}

	// Fall back to /proc/mounts.
	data, err := os.ReadFile("/proc/mounts") // #nosec G304 -- fixed procfs path
	if err != nil {
		return false
	}
	mounts := parseProcMounts(string(data))
	if len(mounts) == 0 {
		return false
	}
	return detectMountFlag(destPath, flag, mounts)
}

//go:build !linux

package install

// IsReadOnlyMount is a no-op outside Linux.
func IsReadOnlyMount(destPath string) bool { return false }

// IsNoExecMount is a no-op outside Linux.
func IsNoExecMount(destPath string) bool { return false }

// Package platform detects the host fingerprint used to pick compatible
// node binaries.
//
// OS and architecture come from the runtime; Linux distribution details come
// from gopsutil with graceful fallback, and the glibc version is probed via
// ldd/getconf. An empty glibc version on Linux means a musl or otherwise
// non-glibc host, which restricts selection to static builds.
package platform

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
)

// Tier ranks how well an asset can match this host.
type Tier int

const (
	// TierExact matches distro and glibc exactly.
	TierExact Tier = iota
	// TierCompatible matches OS/arch with a usable glibc.
	TierCompatible
	// TierStatic is a statically linked build, runnable anywhere.
	TierStatic
	// TierFallback is a best-effort guess.
	TierFallback
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierCompatible:
		return "compatible"
	case TierStatic:
		return "static"
	default:
		return "fallback"
	}
}

// Fingerprint describes the host for asset selection.
type Fingerprint struct {
	OS            string // "linux", "darwin"
	Arch          string // normalized: "amd64", "arm64"
	ArchRaw       string // runtime.GOARCH as reported
	Distro        string // distro ID (Linux only, e.g. "ubuntu")
	DistroVersion string // e.g. "22.04"
	Kernel        string
	GlibcVersion  string // empty on non-glibc hosts
}

// Key returns the manifest download key for this host, e.g. "linux_x86_64".
func (f Fingerprint) Key() string {
	arch := f.Arch
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	}
	return f.OS + "_" + arch
}

// HasGlibc reports whether dynamically linked glibc builds can run here.
func (f Fingerprint) HasGlibc() bool {
	return f.GlibcVersion != ""
}

// Detect probes the running host.
func Detect(ctx context.Context) (Fingerprint, error) {
	fp := Fingerprint{
		OS:      runtime.GOOS,
		ArchRaw: runtime.GOARCH,
	}

	switch runtime.GOARCH {
	case "amd64", "arm64":
		fp.Arch = runtime.GOARCH
	default:
		return Fingerprint{}, fmt.Errorf("unsupported architecture %q", runtime.GOARCH)
	}

	if kernel, err := host.KernelVersionWithContext(ctx); err == nil {
		fp.Kernel = kernel
	}

	if runtime.GOOS == "linux" {
		platform, _, version, err := host.PlatformInformationWithContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return Fingerprint{}, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
			}
			// Distro detail is optional; OS/arch selection still works.
		} else if platform != "" {
			fp.Distro = strings.ToLower(platform)
			fp.DistroVersion = version
		}
		fp.GlibcVersion = detectGlibc(ctx)
	}

	return fp, nil
}

var glibcVersionRe = regexp.MustCompile(`(\d+\.\d+)`)

// detectGlibc asks ldd first, then getconf. Both absent or silent means no
// glibc.
func detectGlibc(ctx context.Context) string {
	if out, err := exec.CommandContext(ctx, "ldd", "--version").Output(); err == nil {
		if v := parseGlibcVersion(string(out)); v != "" {
			return v
		}
	}
	if out, err := exec.CommandContext(ctx, "getconf", "GNU_LIBC_VERSION").Output(); err == nil {
		if v := parseGlibcVersion(string(out)); v != "" {
			return v
		}
	}
	return ""
}

func parseGlibcVersion(output string) string {
	first := output
	if idx := strings.IndexByte(first, '\n'); idx >= 0 {
		first = first[:idx]
	}
	lower := strings.ToLower(first)
	if !strings.Contains(lower, "glibc") && !strings.Contains(lower, "gnu libc") && !strings.Contains(lower, "gnu_libc") {
		return ""
	}
	if m := glibcVersionRe.FindString(first); m != "" {
		return m
	}
	return ""
}

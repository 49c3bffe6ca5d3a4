package platform

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectReportsRuntime(t *testing.T) {
	if runtime.GOARCH != "amd64" && runtime.GOARCH != "arm64" {
		t.Skipf("unsupported test arch %s", runtime.GOARCH)
	}

	fp, err := Detect(context.Background())
	require.NoError(t, err)
	require.Equal(t, runtime.GOOS, fp.OS)
	require.Equal(t, runtime.GOARCH, fp.Arch)
}

func TestFingerprintKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		fp   Fingerprint
		want string
	}{
		{Fingerprint{OS: "linux", Arch: "amd64"}, "linux_x86_64"},
		{Fingerprint{OS: "linux", Arch: "arm64"}, "linux_aarch64"},
		{Fingerprint{OS: "darwin", Arch: "arm64"}, "darwin_aarch64"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, tc.fp.Key())
	}
}

func TestParseGlibcVersion(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		output string
		want   string
	}{
		{"debian ldd", "ldd (Debian GLIBC 2.36-9+deb12u4) 2.36\nCopyright (C) 2022", "2.36"},
		{"ubuntu ldd", "ldd (Ubuntu GLIBC 2.35-0ubuntu3.8) 2.35\n", "2.35"},
		{"getconf", "glibc 2.31\n", "2.31"},
		{"getconf variant", "GNU_LIBC_VERSION: glibc 2.28", "2.28"},
		{"musl", "musl libc (x86_64)\nVersion 1.2.4\n", ""},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, parseGlibcVersion(tc.output))
		})
	}
}

func TestTierString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "exact", TierExact.String())
	require.Equal(t, "compatible", TierCompatible.String())
	require.Equal(t, "static", TierStatic.String())
	require.Equal(t, "fallback", TierFallback.String())
}

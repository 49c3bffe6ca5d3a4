// Package assets picks the release artifact compatible with a host
// fingerprint.
package assets

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/helios-node/helios/internal/platform"
)

// Asset is one downloadable artifact from a release.
type Asset struct {
	Name string
	URL  string
	Size int64
}

// NoCompatibleAssetError reports that nothing in the release runs on this
// host. It lists everything that was considered so the operator can see why.
type NoCompatibleAssetError struct {
	Fingerprint platform.Fingerprint
	Considered  []string
}

func (e *NoCompatibleAssetError) Error() string {
	return fmt.Sprintf("no release asset compatible with %s/%s (glibc %q); considered: %s",
		e.Fingerprint.OS, e.Fingerprint.Arch, e.Fingerprint.GlibcVersion,
		strings.Join(e.Considered, ", "))
}

var osAliasTable = map[string][]string{
	"linux":  {"linux"},
	"darwin": {"darwin", "macos", "osx"},
}

var archAliasTable = map[string][]string{
	"amd64": {"amd64", "x86_64", "x64"},
	"arm64": {"arm64", "aarch64"},
}

// Suffixes that mark supplemental files, never runnable artifacts.
var supplementalSuffixes = []string{
	".sha256", ".sha512", ".minisig", ".asc", ".sig", ".pem",
	".sbom", ".sbom.json", ".txt", ".md", ".dbg", ".debug",
}

// Select scores every asset against the fingerprint and returns the best
// match with its compatibility tier. Exact libc matches win over generic
// glibc builds, which win over static builds; hosts without glibc only
// accept static or musl builds.
func Select(list []Asset, fp platform.Fingerprint) (Asset, platform.Tier, error) {
	type scored struct {
		asset Asset
		tier  platform.Tier
		score int
	}

	var candidates []scored
	var considered []string

	for _, a := range list {
		name := strings.ToLower(a.Name)
		considered = append(considered, a.Name)
		if isSupplemental(name) {
			continue
		}
		if !matchesAny(name, osAliasTable[fp.OS]) || !matchesAny(name, archAliasTable[fp.Arch]) {
			continue
		}

		tier, ok := libcTier(name, fp)
		if !ok {
			continue
		}

		score := 0
		if strings.Contains(name, fp.OS) {
			score += 5
		} else {
			score += 3
		}
		if strings.Contains(name, fp.Arch) {
			score += 5
		} else {
			score += 3
		}
		if strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz") || strings.HasSuffix(name, ".tar.zst") {
			score += 2
		}
		candidates = append(candidates, scored{asset: a, tier: tier, score: score})
	}

	if len(candidates) == 0 {
		sort.Strings(considered)
		return Asset{}, platform.TierFallback, &NoCompatibleAssetError{Fingerprint: fp, Considered: considered}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].tier != candidates[j].tier {
			return candidates[i].tier < candidates[j].tier
		}
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].asset.Name < candidates[j].asset.Name
	})

	best := candidates[0]
	return best.asset, best.tier, nil
}

// libcTier classifies an asset's linkage against the host libc. The second
// return is false when the asset cannot run here at all.
func libcTier(name string, fp platform.Fingerprint) (platform.Tier, bool) {
	isStatic := strings.Contains(name, "musl") || strings.Contains(name, "static")
	isGnu := strings.Contains(name, "gnu") || strings.Contains(name, "glibc")

	if fp.OS != "linux" {
		return platform.TierCompatible, true
	}
	if isStatic {
		return platform.TierStatic, true
	}
	if !fp.HasGlibc() {
		// Dynamically linked glibc builds will not start on musl hosts.
		return platform.TierFallback, false
	}
	if isGnu {
		if fp.GlibcVersion != "" && strings.Contains(name, "glibc"+fp.GlibcVersion) {
			return platform.TierExact, true
		}
		return platform.TierCompatible, true
	}
	// No linkage marker in the name: assume the common dynamically linked
	// case.
	return platform.TierCompatible, true
}

func isSupplemental(name string) bool {
	for _, suffix := range supplementalSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func matchesAny(name string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(name, tok) {
			return true
		}
	}
	return false
}

// FromDownloads flattens a manifest downloads map into assets. The asset
// name is the published file name with the platform key as fallback.
func FromDownloads(downloads map[string]string, size int64) []Asset {
	out := make([]Asset, 0, len(downloads))
	for key, url := range downloads {
		name := path.Base(url)
		if name == "" || name == "." || name == "/" {
			name = key
		}
		out = append(out, Asset{Name: name, URL: url, Size: size})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

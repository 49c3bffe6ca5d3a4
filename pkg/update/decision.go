package update

import (
	"fmt"
	"strconv"
	"strings"
)

type Decision string

const (
	DecisionProceed   Decision = "proceed"   // Update available, proceed normally
	DecisionMandatory Decision = "mandatory" // Installed version below the published minimum
	DecisionSkip      Decision = "skip"      // Already at target version
	DecisionRefuse    Decision = "refuse"    // Refuse (e.g., cross-major without force)
	DecisionReinstall Decision = "reinstall" // Force reinstall same version
	DecisionDowngrade Decision = "downgrade" // Explicit downgrade to an older release
	DecisionInstall   Decision = "install"   // Nothing installed yet
)

// FormatVersionDisplay formats a version string for display, adding "v" prefix if needed.
func FormatVersionDisplay(v string) string {
	if v == "" || v == "dev" || v == "0.0.0-dev" {
		return v
	}
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// NormalizeVersion strips the leading "v" prefix and validates that the version
// is semver-like (at least MAJOR.MINOR, optionally with PATCH, prerelease, and/or build metadata).
// Returns the normalized version string and a boolean indicating whether comparison is possible.
// "dev", empty strings, and non-semver formats return ("", false).
func NormalizeVersion(v string) (string, bool) {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" || trimmed == "dev" || trimmed == "0.0.0-dev" {
		return "", false
	}

	normalized := strings.TrimPrefix(trimmed, "v")
	parts := strings.Split(normalized, ".")
	if len(parts) < 2 {
		return "", false
	}

	for i := 0; i < 2; i++ {
		if _, err := strconv.Atoi(parts[i]); err != nil {
			return "", false
		}
	}

	if len(parts) >= 3 {
		patchPart := parts[2]
		if idx := strings.IndexAny(patchPart, "-+"); idx >= 0 {
			patchPart = patchPart[:idx]
		}
		if patchPart != "" {
			if _, err := strconv.Atoi(patchPart); err != nil {
				return "", false
			}
		}
	}

	return normalized, true
}

type semverParts struct {
	major      int
	minor      int
	patch      int
	prerelease []string
}

func parseSemver(normalized string) (semverParts, error) {
	var out semverParts

	base := normalized
	if idx := strings.IndexByte(base, '+'); idx >= 0 {
		base = base[:idx]
	}

	var prerelease string
	if idx := strings.IndexByte(base, '-'); idx >= 0 {
		prerelease = base[idx+1:]
		base = base[:idx]
	}

	parts := strings.Split(base, ".")
	if len(parts) < 2 {
		return semverParts{}, fmt.Errorf("invalid semver format")
	}

	var err error
	out.major, err = strconv.Atoi(parts[0])
	if err != nil {
		return semverParts{}, fmt.Errorf("parse major %q: %w", parts[0], err)
	}
	out.minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return semverParts{}, fmt.Errorf("parse minor %q: %w", parts[1], err)
	}
	out.patch = 0
	if len(parts) >= 3 && parts[2] != "" {
		out.patch, err = strconv.Atoi(parts[2])
		if err != nil {
			return semverParts{}, fmt.Errorf("parse patch %q: %w", parts[2], err)
		}
	}

	if prerelease != "" {
		out.prerelease = strings.Split(prerelease, ".")
	}

	return out, nil
}

func comparePrerelease(a, b []string) int {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	if len(a) == 0 {
		return 1
	}
	if len(b) == 0 {
		return -1
	}

	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ai, bi := a[i], b[i]
		aNum, aErr := strconv.Atoi(ai)
		bNum, bErr := strconv.Atoi(bi)
		aIsNum := aErr == nil
		bIsNum := bErr == nil

		switch {
		case aIsNum && bIsNum:
			if aNum < bNum {
				return -1
			}
			if aNum > bNum {
				return 1
			}
		case aIsNum && !bIsNum:
			return -1
		case !aIsNum && bIsNum:
			return 1
		default:
			if ai < bi {
				return -1
			}
			if ai > bi {
				return 1
			}
		}
	}

	if len(a) < len(b) {
		return -1
	}
	if len(a) > len(b) {
		return 1
	}
	return 0
}

// CompareSemver compares two normalized semver-like strings.
// Returns -1 if a < b, 0 if a == b, 1 if a > b.
// Supports MAJOR.MINOR[.PATCH] with optional prerelease/build metadata; build metadata is ignored.
// Returns an error if either version cannot be parsed.
func CompareSemver(a, b string) (int, error) {
	av, err := parseSemver(a)
	if err != nil {
		return 0, err
	}
	bv, err := parseSemver(b)
	if err != nil {
		return 0, err
	}

	switch {
	case av.major < bv.major:
		return -1, nil
	case av.major > bv.major:
		return 1, nil
	case av.minor < bv.minor:
		return -1, nil
	case av.minor > bv.minor:
		return 1, nil
	case av.patch < bv.patch:
		return -1, nil
	case av.patch > bv.patch:
		return 1, nil
	}

	return comparePrerelease(av.prerelease, bv.prerelease), nil
}

func majorVersionFromNormalized(normalized string) (int, error) {
	t := strings.TrimSpace(normalized)
	if t == "" {
		return 0, fmt.Errorf("empty version")
	}
	parts := strings.Split(t, ".")
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("parse major: %w", err)
	}
	return major, nil
}

// IsBelowMinimum reports whether current falls below the published minimum
// version. Uncomparable inputs count as not-below so a bad manifest cannot
// force an update.
func IsBelowMinimum(current, minimum string) bool {
	currentNorm, currentOK := NormalizeVersion(current)
	minNorm, minOK := NormalizeVersion(minimum)
	if !currentOK || !minOK {
		return false
	}
	cmp, err := CompareSemver(currentNorm, minNorm)
	return err == nil && cmp < 0
}

// Decide determines what to do about a published release.
//
// current:  installed version ("" when nothing is installed yet)
// target:   published release version
// minimum:  published minimum supported version (may be empty)
// explicitTarget: true when the operator pinned this exact release (allows downgrades)
// force:    true when --force was given
//
// Returns a Decision and a human message.
func Decide(current, target, minimum string, explicitTarget, force bool) (Decision, string) {
	currentNorm, currentOK := NormalizeVersion(current)
	targetNorm, targetOK := NormalizeVersion(target)

	if !currentOK {
		if current == "" {
			return DecisionInstall, fmt.Sprintf("Installing node %s", FormatVersionDisplay(target))
		}
		return DecisionProceed, fmt.Sprintf("Version comparison skipped (installed=%q, target=%s). Proceeding with verified install.", current, FormatVersionDisplay(target))
	}

	if !targetOK {
		return DecisionProceed, fmt.Sprintf("Version comparison skipped (installed=%s, target=%q). Proceeding with verified install.", FormatVersionDisplay(currentNorm), target)
	}

	if IsBelowMinimum(current, minimum) {
		return DecisionMandatory, fmt.Sprintf("Installed node %s is below the minimum supported %s; updating to %s is required.",
			FormatVersionDisplay(currentNorm), FormatVersionDisplay(minimum), FormatVersionDisplay(targetNorm))
	}

	cmp, err := CompareSemver(currentNorm, targetNorm)
	if err != nil {
		return DecisionProceed, fmt.Sprintf("Version comparison failed: %v. Proceeding with verified install.", err)
	}

	currentMajor, _ := majorVersionFromNormalized(currentNorm)
	targetMajor, _ := majorVersionFromNormalized(targetNorm)

	switch cmp {
	case 0:
		if force {
			return DecisionReinstall, fmt.Sprintf("Reinstalling node %s...", FormatVersionDisplay(targetNorm))
		}
		return DecisionSkip, fmt.Sprintf("Already at the latest version (%s). Use --force to reinstall.", FormatVersionDisplay(targetNorm))

	case -1:
		if currentMajor != targetMajor && !force {
			return DecisionRefuse, fmt.Sprintf("Refusing update across major versions (%s → %s); rerun with --force to proceed.",
				FormatVersionDisplay(currentNorm), FormatVersionDisplay(targetNorm))
		}
		return DecisionProceed, fmt.Sprintf("Updating node: %s → %s", FormatVersionDisplay(currentNorm), FormatVersionDisplay(targetNorm))

	case 1:
		if !explicitTarget {
			return DecisionSkip, fmt.Sprintf("Already at version %s (published %s is older). Pin a release explicitly to downgrade.",
				FormatVersionDisplay(currentNorm), FormatVersionDisplay(targetNorm))
		}
		if currentMajor != targetMajor && !force {
			return DecisionRefuse, fmt.Sprintf("Refusing downgrade across major versions (%s → %s); rerun with --force to proceed.",
				FormatVersionDisplay(currentNorm), FormatVersionDisplay(targetNorm))
		}
		return DecisionDowngrade, fmt.Sprintf("Downgrading node: %s → %s", FormatVersionDisplay(currentNorm), FormatVersionDisplay(targetNorm))
	}

	return DecisionProceed, ""
}

// DescribeDecision returns a human-readable dry-run status.
func DescribeDecision(d Decision) string {
	switch d {
	case DecisionSkip:
		return "Already at latest version (no update needed)"
	case DecisionRefuse:
		return "Update refused (cross-major version change)"
	case DecisionProceed:
		return "Update available"
	case DecisionMandatory:
		return "Mandatory update (installed version below supported minimum)"
	case DecisionReinstall:
		return "Force reinstall requested"
	case DecisionDowngrade:
		return "Downgrade available"
	case DecisionInstall:
		return "Fresh install"
	default:
		return string(d)
	}
}

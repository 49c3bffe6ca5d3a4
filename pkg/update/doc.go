// Package update provides small, dependency-free helpers for deciding whether a
// node binary update should proceed.
//
// It is designed for agents that install managed binaries from signed release
// manifests, where you want conservative guardrails and clear user messaging.
//
// This package intentionally does not perform downloads, signature verification,
// checksum verification, or installation. It focuses on deciding whether an
// update should proceed given an installed version, a published release
// version, and the publisher's minimum supported version.
//
// Version model
//   - Supports semver-like strings in the form "vMAJOR.MINOR[.PATCH]" with optional
//     prerelease/build metadata (e.g., "v0.2.5-rc1", "v1.0.0+build123").
//   - Prerelease precedence follows SemVer: "0.2.5-rc1" < "0.2.5".
//   - "dev", "0.0.0-dev", and empty versions are treated as non-comparable;
//     an empty installed version means a fresh install.
//   - An installed version below the published minimum makes the update
//     mandatory, overriding the cross-major guardrail.
package update

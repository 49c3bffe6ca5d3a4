package selfupdate

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/helios-node/helios/internal/assets"
	"github.com/helios-node/helios/internal/manifest"
	"github.com/helios-node/helios/internal/platform"
	"github.com/helios-node/helios/internal/transport"
	"github.com/helios-node/helios/internal/trust"
	"github.com/helios-node/helios/pkg/update"
)

// Updater drives the check-verify-download-apply cycle for the node binary.
type Updater struct {
	Client         *transport.Client
	Verifier       *trust.Verifier
	ManifestURL    string
	CurrentVersion string
	Logger         zerolog.Logger

	// MinisignKey, when set, requires a <manifest>.minisig sidecar signed
	// by this minisign public key before the manifest is trusted at all.
	MinisignKey string
}

// Check fetches and parses the release manifest, then decides what to do
// about it relative to the currently installed version.
func (u *Updater) Check(ctx context.Context) (*manifest.Release, update.Decision, string, error) {
	resp, err := u.Client.Get(ctx, u.ManifestURL)
	if err != nil {
		return nil, "", "", fmt.Errorf("fetch manifest: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", "", fmt.Errorf("fetch manifest: unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, "", "", fmt.Errorf("read manifest: %w", err)
	}

	if u.MinisignKey != "" {
		if err := u.verifyManifestSidecar(ctx, body); err != nil {
			return nil, "", "", err
		}
	}

	rel, err := manifest.Parse(body)
	if err != nil {
		return nil, "", "", err
	}

	decision, msg := update.Decide(u.CurrentVersion, rel.Version, rel.MinVersion, false, false)
	u.Logger.Debug().
		Str("current", u.CurrentVersion).
		Str("published", rel.Version).
		Str("minimum", rel.MinVersion).
		Str("decision", string(decision)).
		Msg("update check")
	return rel, decision, msg, nil
}

// verifyManifestSidecar fetches <manifest URL>.minisig and checks it over
// the raw manifest bytes. A missing sidecar is a trust failure: once an
// operator pins a minisign key, an unsigned manifest must not be accepted.
func (u *Updater) verifyManifestSidecar(ctx context.Context, body []byte) error {
	sigURL := u.ManifestURL + ".minisig"
	resp, err := u.Client.Get(ctx, sigURL)
	if err != nil {
		return &TrustVerificationFailedError{Cause: fmt.Errorf("fetch manifest signature: %w", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &TrustVerificationFailedError{Cause: fmt.Errorf("manifest signature %s: unexpected status %s", sigURL, resp.Status)}
	}
	sig, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return &TrustVerificationFailedError{Cause: fmt.Errorf("read manifest signature: %w", err)}
	}

	if err := trust.VerifyMinisignData(body, sig, u.MinisignKey); err != nil {
		return &TrustVerificationFailedError{Cause: err}
	}
	u.Logger.Debug().Str("sidecar", sigURL).Msg("manifest signature verified")
	return nil
}

// Download picks the asset for fp, fetches it, and verifies it against the
// manifest. The returned bytes are safe to hand to Apply.
func (u *Updater) Download(ctx context.Context, rel *manifest.Release, fp platform.Fingerprint) ([]byte, error) {
	list := assets.FromDownloads(rel.Downloads, rel.Size)
	asset, tier, err := assets.Select(list, fp)
	if err != nil {
		return nil, err
	}
	u.Logger.Info().Str("asset", asset.Name).Str("tier", tier.String()).Msg("selected release asset")

	resp, err := u.Client.Get(ctx, asset.URL)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", asset.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: unexpected status %s", asset.Name, resp.Status)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", asset.Name, err)
	}

	if rel.Size > 0 && int64(len(payload)) != rel.Size {
		return nil, &DownloadIncompleteError{Got: int64(len(payload)), Want: rel.Size}
	}
	if err := u.Verifier.Verify(rel, payload); err != nil {
		return nil, &TrustVerificationFailedError{Cause: err}
	}
	return payload, nil
}

package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/helios-node/helios/internal/install"
	"github.com/helios-node/helios/internal/lockfile"
	"github.com/helios-node/helios/internal/manifest"
	"github.com/helios-node/helios/internal/meta"
	"github.com/helios-node/helios/internal/platform"
	"github.com/helios-node/helios/internal/selfupdate"
	"github.com/helios-node/helios/internal/trust"
	"github.com/helios-node/helios/pkg/update"
)

func (a *app) updateCommand() *cobra.Command {
	var (
		checkOnly  bool
		force      bool
		selfTarget bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Install the latest published node release",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfig(); err != nil {
				return err
			}

			updater, err := a.updater()
			if err != nil {
				return err
			}
			rel, decision, msg, err := updater.Check(cmd.Context())
			if err != nil {
				return err
			}

			if checkOnly {
				fmt.Fprintln(a.stdout, update.DescribeDecision(decision))
				fmt.Fprintln(a.stdout, msg)
				if rel.ReleaseNotes != "" {
					fmt.Fprintf(a.stdout, "\n%s\n", rel.ReleaseNotes)
				}
				return nil
			}

			if force && (decision == update.DecisionSkip || decision == update.DecisionRefuse) {
				installed := a.installedVersion()
				decision, msg = update.Decide(installed, rel.Version, rel.MinVersion, false, true)
			}
			switch decision {
			case update.DecisionProceed, update.DecisionMandatory, update.DecisionReinstall, update.DecisionInstall:
				fmt.Fprintln(a.stdout, msg)
			case update.DecisionSkip:
				fmt.Fprintln(a.stdout, msg)
				return nil
			default:
				return fmt.Errorf("%s", msg)
			}

			return a.installRelease(cmd.Context(), updater, rel, selfTarget)
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "check for updates without installing")
	cmd.Flags().BoolVar(&force, "force", false, "update even when already at the latest version")
	cmd.Flags().BoolVar(&selfTarget, "self", false, "replace the running agent binary instead of the managed node")
	return cmd
}

func (a *app) updater() (*selfupdate.Updater, error) {
	verifier, err := trust.NewVerifier(PublisherKey)
	if err != nil {
		return nil, err
	}
	return &selfupdate.Updater{
		Client:         a.transportClient(),
		Verifier:       verifier,
		ManifestURL:    a.cfg.UpdateManifestURL,
		CurrentVersion: a.installedVersion(),
		Logger:         a.logger,
		MinisignKey:    a.cfg.UpdateMinisignKey,
	}, nil
}

func (a *app) installedVersion() string {
	rec, err := meta.Load(a.cfg.DataDir)
	if err != nil || rec == nil {
		return ""
	}
	return rec.InstalledVersion
}

// installRelease downloads, verifies, and swaps in a release under the
// concurrency lock. With selfTarget the swap lands on the running agent
// binary (or its outer package) rather than the managed node binary.
func (a *app) installRelease(ctx context.Context, updater *selfupdate.Updater, rel *manifest.Release, selfTarget bool) error {
	lock, err := lockfile.Acquire(a.lockPath())
	if err != nil {
		return err
	}
	defer lock.Release()

	fp, err := platform.Detect(ctx)
	if err != nil {
		return err
	}
	a.logger.Info().
		Str("os", fp.OS).
		Str("arch", fp.Arch).
		Str("distro", fp.Distro).
		Str("glibc", fp.GlibcVersion).
		Msg("detected host")

	payload, err := updater.Download(ctx, rel, fp)
	if err != nil {
		return err
	}

	var target string
	if selfTarget {
		target, err = selfupdate.ComputeTargetPath("")
		if err != nil {
			return err
		}
	} else {
		// The binary itself is small next to chain data; probing keeps a
		// full disk from corrupting the install mid-swap.
		resolver := install.NewResolver(a.logger, filepath.Dir(a.binaryPath()), a.cfg.DataDir)
		targetDir, err := resolver.Resolve(uint64(len(payload)) * 2)
		if err != nil {
			return err
		}
		target = filepath.Join(targetDir, filepath.Base(a.binaryPath()))
	}

	applier := selfupdate.NewApplier(a.logger)
	if err := applier.Apply(payload, rel.Size, target); err != nil {
		return err
	}

	if err := meta.Save(a.cfg.DataDir, meta.Record{
		InstalledVersion: rel.Version,
		InstalledDigest:  rel.SHA256,
		InstalledAt:      time.Now().UTC(),
	}); err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Installed node %s at %s\n", update.FormatVersionDisplay(rel.Version), target)
	return nil
}

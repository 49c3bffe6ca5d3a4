package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/helios-node/helios/internal/meta"
	"github.com/helios-node/helios/internal/node"
	"github.com/helios-node/helios/internal/trust"
	"github.com/helios-node/helios/pkg/update"
)

func (a *app) startCommand() *cobra.Command {
	var (
		foreground      bool
		skipUpdateCheck bool
		fastSync        bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the node",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfig(); err != nil {
				return err
			}

			if installed, _ := meta.Load(a.cfg.DataDir); installed == nil {
				if _, err := os.Stat(a.binaryPath()); err != nil {
					return fmt.Errorf("no node binary installed; run 'helios update' first")
				}
			}

			if !skipUpdateCheck {
				if err := a.ensureUpToDate(cmd.Context()); err != nil {
					return err
				}
			}

			if fastSync && !a.hasChainData() {
				a.logger.Info().Msg("no chain data found; starting snapshot fast sync")
				if err := a.downloadSnapshot(cmd.Context(), ""); err != nil {
					return err
				}
			}

			state, err := a.supervisor().Start(cmd.Context(), foreground)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "node %s\n", state)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "run in the foreground")
	cmd.Flags().BoolVar(&skipUpdateCheck, "skip-update-check", false, "skip the update check on startup")
	cmd.Flags().BoolVar(&fastSync, "snapshot", true, "fast sync from a snapshot when no chain data exists")
	return cmd
}

// ensureUpToDate enforces the release floor before the node may start. A
// mandatory release (installed version below the manifest's min_version) is
// terminal: it is applied when auto_update allows, otherwise start refuses.
// An unreachable manifest only logs a warning; the node we have still runs.
func (a *app) ensureUpToDate(ctx context.Context) error {
	updater, err := a.updater()
	if err != nil {
		return err
	}
	rel, decision, msg, err := updater.Check(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("update check failed")
		return nil
	}

	switch decision {
	case update.DecisionMandatory:
		if !a.cfg.AutoUpdate {
			return &trust.VersionBelowMinimumError{Version: a.installedVersion(), Minimum: rel.MinVersion}
		}
		a.logger.Info().Str("published", rel.Version).Msg(msg)
		return a.installRelease(ctx, updater, rel, false)
	case update.DecisionProceed:
		if a.cfg.AutoUpdate {
			a.logger.Info().Str("published", rel.Version).Msg(msg)
			return a.installRelease(ctx, updater, rel, false)
		}
		a.logger.Info().Str("published", rel.Version).Msg("update available; run 'helios update'")
	default:
		a.logger.Debug().Msg(msg)
	}
	return nil
}

func (a *app) stopCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running node",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfig(); err != nil {
				return err
			}
			if err := a.supervisor().Stop(cmd.Context(), force); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, "node stopped")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "kill immediately instead of shutting down gracefully")
	return cmd
}

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show node status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfig(); err != nil {
				return err
			}

			sup := a.supervisor()
			state := sup.Status()
			fmt.Fprintf(a.stdout, "Status:  %s\n", state)
			fmt.Fprintf(a.stdout, "Network: %s\n", a.cfg.Network)

			if installed, err := meta.Load(a.cfg.DataDir); err == nil && installed != nil {
				fmt.Fprintf(a.stdout, "Version: %s (installed %s)\n",
					update.FormatVersionDisplay(installed.InstalledVersion),
					installed.InstalledAt.Format("2006-01-02"))
			}

			if state.Kind == node.Running {
				if uptime, err := sup.Uptime(); err == nil {
					fmt.Fprintf(a.stdout, "Uptime:  %s\n", uptime.Round(1e9))
				}
				if rss, err := sup.MemoryRSS(); err == nil {
					fmt.Fprintf(a.stdout, "Memory:  %d MiB\n", rss>>20)
				}
			}
			return nil
		},
	}
}

func (a *app) hasChainData() bool {
	entries, err := os.ReadDir(a.chainDataDir())
	return err == nil && len(entries) > 0
}

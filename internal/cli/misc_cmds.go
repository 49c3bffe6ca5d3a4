package cli

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/helios-node/helios/internal/config"
	"github.com/helios-node/helios/pkg/update"
)

func (a *app) initCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration and data directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.Init(a.dataDir, a.network, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Configuration initialized at %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration")
	return cmd
}

func (a *app) configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfig(); err != nil {
				return err
			}
			return toml.NewEncoder(a.stdout).Encode(a.cfg)
		},
	}
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(a.stdout, "helios %s\n", update.FormatVersionDisplay(Version))
			if err := a.loadConfig(); err != nil {
				return err
			}
			installed := a.installedVersion()
			if installed == "" {
				installed = "none"
			} else {
				installed = update.FormatVersionDisplay(installed)
			}
			fmt.Fprintf(a.stdout, "node:    %s\n", installed)
			fmt.Fprintf(a.stdout, "network: %s\n", a.cfg.Network)
			fmt.Fprintf(a.stdout, "data:    %s\n", a.cfg.DataDir)
			return nil
		},
	}
}

// Package cli wires the agent's command surface.
//
// Run is the real entrypoint; main delegates to it so commands can be
// exercised in tests without forking a process.
package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helios-node/helios/internal/certchain"
	"github.com/helios-node/helios/internal/config"
	"github.com/helios-node/helios/internal/install"
	"github.com/helios-node/helios/internal/lockfile"
	"github.com/helios-node/helios/internal/logging"
	"github.com/helios-node/helios/internal/node"
	"github.com/helios-node/helios/internal/selfupdate"
	"github.com/helios-node/helios/internal/snapshot"
	"github.com/helios-node/helios/internal/transport"
	"github.com/helios-node/helios/internal/trust"
)

// Version is stamped at build time via -ldflags.
var Version = "0.0.0-dev"

// PublisherKey is the release publisher's ed25519 key, hex encoded. Stamped
// at build time; the default is the public helios release key.
var PublisherKey = "302a79d5b4b9652024c5b2f53a0c4b6a1f9df4a48c6e3ad37a2b8c91d04e7f55"

// Exit codes by failure class, so scripts can tell a trust failure from a
// full disk.
const (
	exitOK          = 0
	exitGeneric     = 1
	exitTrust       = 2
	exitResource    = 3
	exitConcurrency = 4
	exitSwap        = 5
)

// app carries the state shared by all commands of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer
	logger zerolog.Logger

	// global flags
	configPath string
	dataDir    string
	network    string
	verbosity  int

	cfg    config.Config
	preset config.NetworkPreset
}

// Run executes the CLI and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}

	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return classify(err)
	}
	return exitOK
}

// classify maps an error to its failure-class exit code.
func classify(err error) int {
	var heldErr *lockfile.HeldError
	var alreadyErr *node.AlreadyRunningError
	if errors.As(err, &heldErr) || errors.As(err, &alreadyErr) {
		return exitConcurrency
	}

	var trustFailed *selfupdate.TrustVerificationFailedError
	var hashErr *trust.HashMismatchError
	var sigErr *trust.SignatureMismatchError
	var unsignedErr *trust.UnsignedError
	var belowMin *trust.VersionBelowMinimumError
	var quorumErr *certchain.QuorumNotMetError
	var brokenErr *certchain.BrokenChainError
	var epochErr *certchain.EpochOutOfRangeError
	var anchorErr *certchain.ExpiredAnchorError
	var digestErr *snapshot.DigestMismatchError
	if errors.As(err, &trustFailed) || errors.As(err, &hashErr) || errors.As(err, &sigErr) ||
		errors.As(err, &unsignedErr) || errors.As(err, &belowMin) ||
		errors.As(err, &quorumErr) || errors.As(err, &brokenErr) ||
		errors.As(err, &epochErr) || errors.As(err, &anchorErr) ||
		errors.As(err, &digestErr) {
		return exitTrust
	}

	var spaceErr *snapshot.InsufficientSpaceError
	var noCandErr *install.NoCandidateSufficientError
	if errors.As(err, &spaceErr) || errors.As(err, &noCandErr) {
		return exitResource
	}

	var swapErr *selfupdate.SwapFailedError
	if errors.As(err, &swapErr) {
		return exitSwap
	}

	return exitGeneric
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "helios",
		Short:         "Self-contained, auto-updating blockchain node",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.logger = logging.New(a.stderr, logging.LevelFromVerbosity(a.verbosity))
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "configuration file path")
	pf.StringVarP(&a.dataDir, "data-dir", "d", "", "data directory (overrides config)")
	pf.StringVarP(&a.network, "network", "n", "mainnet", "network to connect to")
	pf.CountVarP(&a.verbosity, "verbose", "v", "increase logging verbosity")

	root.AddCommand(
		a.startCommand(),
		a.stopCommand(),
		a.statusCommand(),
		a.updateCommand(),
		a.verifyCommand(),
		a.snapshotCommand(),
		a.initCommand(),
		a.configCommand(),
		a.versionCommand(),
	)
	return root
}

// loadConfig resolves the effective configuration for commands that need
// one.
func (a *app) loadConfig() error {
	cfg, err := config.LoadOrCreate(a.configPath, a.dataDir, a.network)
	if err != nil {
		return err
	}
	preset, err := config.Preset(cfg.Network)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.preset = preset
	return nil
}

func (a *app) binaryPath() string {
	return filepath.Join(a.cfg.DataDir, "bin", "helios-node")
}

func (a *app) lockPath() string {
	return filepath.Join(a.cfg.DataDir, "helios.lock")
}

func (a *app) chainDataDir() string {
	return filepath.Join(a.cfg.DataDir, "db")
}

func (a *app) transportClient() *transport.Client {
	return transport.New(Version)
}

func (a *app) supervisor() *node.Supervisor {
	args := []string{
		"run",
		"--database-path", a.chainDataDir(),
		"--port", fmt.Sprintf("%d", a.cfg.NodePort),
	}
	return node.NewSupervisor(a.binaryPath(), a.cfg.DataDir, args, a.logger)
}

func (a *app) chainValidator(agg *snapshot.Aggregator) (*certchain.Validator, error) {
	window := time.Duration(a.preset.AnchorValidityDays) * 24 * time.Hour
	return certchain.NewValidator(agg, a.preset.GenesisVerificationKey, window, a.logger)
}

package cli

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/helios-node/helios/internal/selfupdate"
	"github.com/helios-node/helios/internal/trust"
)

func (a *app) verifyCommand() *cobra.Command {
	var (
		sigPath     string
		minisignKey string
		keyHex      string
	)

	cmd := &cobra.Command{
		Use:   "verify <artifact>",
		Short: "Verify a release artifact against a detached signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0]) // #nosec G304 -- operator-chosen artifact path
			if err != nil {
				return err
			}

			sig, err := trust.LoadSignatureFile(sigPath)
			if err != nil {
				return err
			}

			switch sig.Format {
			case trust.FormatMinisign:
				if minisignKey == "" {
					return errors.New("--minisign-key is required for minisign signatures")
				}
				if err := trust.VerifyMinisign(data, sigPath, minisignKey); err != nil {
					return &selfupdate.TrustVerificationFailedError{Cause: err}
				}
			case trust.FormatBinary:
				if keyHex == "" {
					keyHex = PublisherKey
				}
				pub, err := trust.ParsePublicKeyHex(keyHex)
				if err != nil {
					return err
				}
				// Publishers sign either the raw artifact or its digest;
				// accept both.
				digest := sha256.Sum256(data)
				if !ed25519.Verify(pub, data, sig.Bytes) && !ed25519.Verify(pub, digest[:], sig.Bytes) {
					return &selfupdate.TrustVerificationFailedError{Cause: &trust.SignatureMismatchError{}}
				}
			default:
				return fmt.Errorf("unsupported signature format %q", sig.Format)
			}

			fmt.Fprintf(a.stdout, "Signature for %s verified\n", filepath.Base(args[0]))
			return nil
		},
	}

	cmd.Flags().StringVar(&sigPath, "sig", "", "detached signature file")
	cmd.Flags().StringVar(&minisignKey, "minisign-key", "", "minisign public key file (.pub)")
	cmd.Flags().StringVar(&keyHex, "key", "", "ed25519 public key hex (default: built-in publisher key)")
	_ = cmd.MarkFlagRequired("sig")
	return cmd
}

// Command sign-manifest produces a signed release manifest for helios-node
// artifacts. It hashes each artifact, signs the digest with the publisher's
// ed25519 key, and emits the version.json the agent's updater consumes.
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/helios-node/helios/internal/trust"
)

func main() {
	artifact := flag.String("artifact", "", "path to the release artifact to hash and sign")
	version := flag.String("version", "", "release version (e.g. 2.1.0)")
	minVersion := flag.String("min-version", "", "oldest version allowed to skip this release")
	keyHex := flag.String("key", "", "ed25519 seed key, 64 hex characters (or set HELIOS_SIGNING_KEY)")
	downloads := flag.String("downloads", "", "comma-separated platform=url pairs (e.g. linux_x86_64=https://...)")
	notes := flag.String("notes", "", "release notes to embed")
	out := flag.String("out", "version.json", "output manifest path ('-' for stdout)")
	keygen := flag.Bool("keygen", false, "generate a fresh signing keypair and exit")
	flag.Parse()

	if *keygen {
		if err := generateKeypair(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*artifact, *version, *minVersion, *keyHex, *downloads, *notes, *out); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func generateKeypair(w *os.File) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate keypair: %w", err)
	}
	fmt.Fprintf(w, "seed:   %s\n", hex.EncodeToString(priv.Seed()))
	fmt.Fprintf(w, "public: %s\n", hex.EncodeToString(pub))
	return nil
}

func run(artifact, version, minVersion, keyHex, downloadList, notes, out string) error {
	if artifact == "" {
		return errors.New("--artifact is required")
	}
	if version == "" {
		return errors.New("--version is required")
	}
	if minVersion == "" {
		minVersion = version
	}

	priv, err := signingKey(keyHex)
	if err != nil {
		return err
	}

	dls, err := parseDownloads(downloadList)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(artifact) // #nosec G304 -- release tool reading operator-chosen artifact
	if err != nil {
		return fmt.Errorf("read %s: %w", artifact, err)
	}

	digest := sha256.Sum256(data)
	man := manifestDoc{
		Version:      version,
		MinVersion:   minVersion,
		SHA256:       hex.EncodeToString(digest[:]),
		Signature:    trust.SignDigest(priv, data),
		Size:         int64(len(data)),
		Downloads:    dls,
		ReleaseNotes: notes,
	}

	encoded, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	encoded = append(encoded, '\n')

	if out == "-" {
		_, err = os.Stdout.Write(encoded)
		return err
	}
	if err := os.WriteFile(out, encoded, 0o644); err != nil { // #nosec G306 -- manifest is published material
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Printf("Wrote %s (version %s, %d download targets)\n", out, version, len(dls))
	return nil
}

// manifestDoc mirrors the manifest the agent parses, kept local so field
// order in the emitted JSON stays stable.
type manifestDoc struct {
	Version      string            `json:"version"`
	MinVersion   string            `json:"min_version"`
	SHA256       string            `json:"sha256"`
	Signature    string            `json:"signature"`
	Size         int64             `json:"size"`
	Downloads    map[string]string `json:"downloads"`
	ReleaseNotes string            `json:"release_notes,omitempty"`
}

func signingKey(keyHex string) (ed25519.PrivateKey, error) {
	keyHex = strings.TrimSpace(keyHex)
	if keyHex == "" {
		keyHex = strings.TrimSpace(os.Getenv("HELIOS_SIGNING_KEY"))
	}
	if keyHex == "" {
		return nil, errors.New("--key or HELIOS_SIGNING_KEY is required")
	}
	seed, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("signing key is not valid hex: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing key must be %d hex characters, got %d", ed25519.SeedSize*2, len(keyHex))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

func parseDownloads(list string) (map[string]string, error) {
	dls := make(map[string]string)
	for _, pair := range strings.Split(list, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, url, ok := strings.Cut(pair, "=")
		if !ok || key == "" || url == "" {
			return nil, fmt.Errorf("malformed download entry %q (want platform=url)", pair)
		}
		dls[key] = url
	}
	if len(dls) == 0 {
		return nil, errors.New("--downloads must list at least one platform=url pair")
	}
	return dls, nil
}

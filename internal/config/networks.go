package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

//go:embed networks.json
var embeddedNetworksJSON []byte

// NetworkPreset describes one supported network.
type NetworkPreset struct {
	Magic                  uint32 `json:"magic"`
	AggregatorURL          string `json:"aggregatorUrl"`
	GenesisVerificationKey string `json:"genesisVerificationKey"`
	AnchorValidityDays     int    `json:"anchorValidityDays"`
}

type networksConfig struct {
	Schema   string                   `json:"schema"`
	Version  int                      `json:"version"`
	Networks map[string]NetworkPreset `json:"networks"`
}

var (
	networksOnce sync.Once
	networks     *networksConfig
	networksErr  error
)

func loadEmbeddedNetworks() (*networksConfig, error) {
	networksOnce.Do(func() {
		if len(embeddedNetworksJSON) == 0 {
			networksErr = errors.New("embedded network presets are empty")
			return
		}
		var cfg networksConfig
		if err := json.Unmarshal(embeddedNetworksJSON, &cfg); err != nil {
			networksErr = fmt.Errorf("parse embedded network presets: %w", err)
			return
		}
		if err := validateNetworksConfig(&cfg); err != nil {
			networksErr = err
			return
		}
		networks = &cfg
	})
	return networks, networksErr
}

func validateNetworksConfig(cfg *networksConfig) error {
	var problems []string

	if strings.TrimSpace(cfg.Schema) == "" {
		problems = append(problems, "schema: missing")
	}
	if cfg.Version < 1 {
		problems = append(problems, fmt.Sprintf("version: must be >= 1 (got %d)", cfg.Version))
	}
	if len(cfg.Networks) == 0 {
		problems = append(problems, "networks: missing/empty")
	}
	for name, preset := range cfg.Networks {
		if strings.TrimSpace(preset.AggregatorURL) == "" {
			problems = append(problems, fmt.Sprintf("networks.%s.aggregatorUrl: missing", name))
		}
		if strings.TrimSpace(preset.GenesisVerificationKey) == "" {
			problems = append(problems, fmt.Sprintf("networks.%s.genesisVerificationKey: missing", name))
		}
		if preset.AnchorValidityDays < 1 {
			problems = append(problems, fmt.Sprintf("networks.%s.anchorValidityDays: must be >= 1 (got %d)", name, preset.AnchorValidityDays))
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("invalid embedded network presets:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// Preset returns the embedded preset for a network name.
func Preset(network string) (NetworkPreset, error) {
	cfg, err := loadEmbeddedNetworks()
	if err != nil {
		return NetworkPreset{}, err
	}
	preset, ok := cfg.Networks[network]
	if !ok {
		return NetworkPreset{}, fmt.Errorf("unknown network %q (supported: %s)", network, strings.Join(NetworkNames(), ", "))
	}
	return preset, nil
}

// NetworkNames returns the supported network names, sorted.
func NetworkNames() []string {
	cfg, err := loadEmbeddedNetworks()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(cfg.Networks))
	for name := range cfg.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. AGENDACAL_LISTEN.
const EnvPrefix = "AGENDACAL_"

// applyEnv overlays AGENDACAL_* variables onto cfg. Keys map to the flat
// yaml tags (AGENDACAL_WEEK_START -> week_start); nested blocks and lists
// are only configurable through the file.
func applyEnv(cfg *Config) error {
	k := koanf.New(".")

	provider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(provider, nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	if len(k.Keys()) == 0 {
		return nil
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return fmt.Errorf("%w: env overrides: %v", ErrInvalidConfig, err)
	}
	return nil
}

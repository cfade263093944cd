package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if FORMSENSE_CONFIG is set
//  3. env (prefix FORMSENSE_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("FORMSENSE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: FORMSENSE_EXERCISE, FORMSENSE_ALIGN_MODE, ...
	// Map env keys like FORMSENSE_ALIGN_MODE -> align_mode (flat keys)
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("FORMSENSE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "formsense_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	// Basic validation
	if cfg.Exercise == "" {
		return nil, fmt.Errorf("%w: exercise must not be empty", ErrInvalidConfig)
	}
	if cfg.ThresholdsPath == "" {
		return nil, fmt.Errorf("%w: thresholds_path must not be empty", ErrInvalidConfig)
	}
	if cfg.AlignMode != "speed_ratio" && cfg.AlignMode != "elastic" {
		return nil, fmt.Errorf("%w: unknown align_mode %q", ErrInvalidConfig, cfg.AlignMode)
	}
	if cfg.ComputeBudgetMS <= 0 {
		return nil, fmt.Errorf("%w: compute_budget_ms must be positive", ErrInvalidConfig)
	}
	return &cfg, nil
}

// Package config defines process configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load() layers defaults, an optional YAML file, and env vars.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// MetricsAddr configures the Prometheus listen address, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`

	// ThresholdsPath points at the clinical threshold YAML file.
	ThresholdsPath string `koanf:"thresholds_path"`

	// Exercise selects the threshold table and template to load.
	Exercise string `koanf:"exercise"`

	// SkillTier optionally narrows thresholds to a subject tier.
	SkillTier string `koanf:"skill_tier"`

	// AlignMode selects the temporal alignment strategy:
	// speed_ratio or elastic.
	AlignMode string `koanf:"align_mode"`

	// ComputeBudgetMS bounds per-frame pipeline time.
	ComputeBudgetMS int `koanf:"compute_budget_ms"`

	// VisibilityFloor is the landmark confidence below which a joint is
	// treated as missing.
	VisibilityFloor float64 `koanf:"visibility_floor"`

	// ConfidenceFloor is the alignment confidence below which new
	// pending faults are suppressed.
	ConfidenceFloor float64 `koanf:"confidence_floor"`

	// TrackingLossFrames is how many consecutive empty frames trigger a
	// tracking reset.
	TrackingLossFrames int `koanf:"tracking_loss_frames"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		MetricsAddr:        ":9090",
		ThresholdsPath:     "configs/thresholds.yaml",
		Exercise:           "squat",
		AlignMode:          "speed_ratio",
		ComputeBudgetMS:    30,
		VisibilityFloor:    0.5,
		ConfidenceFloor:    0.3,
		TrackingLossFrames: 15,
	}
}

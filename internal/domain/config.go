package domain

import "time"

// Config is the merged stagegate configuration.
// Values come from defaults, then the global file, then the repo file.
type Config struct {
	Enforcement EnforcementConfig `toml:"enforcement"`
	Agents      AgentsConfig      `toml:"agents"`
	Lanes       LanesConfig       `toml:"lanes"`
	Evidence    EvidenceConfig    `toml:"evidence"`
	Audit       AuditConfig       `toml:"audit"`
	AutoFix     AutoFixConfig     `toml:"auto_fix"`
	Log         LogConfig         `toml:"log"`

	// Warnings collected while loading (unknown keys, ignored values).
	Warnings []string `toml:"-"`
}

// EnforcementConfig controls how violations apply.
type EnforcementConfig struct {
	Mode EnforcementMode `toml:"mode"`
}

// AgentsConfig controls delegated-work requirements.
type AgentsConfig struct {
	MinCountDefault int `toml:"min_count_default"`
}

// LanesConfig holds per-lane policy.
type LanesConfig struct {
	Fast FastLaneConfig `toml:"fast"`
}

// FastLaneConfig restricts what the fast lane may touch.
type FastLaneConfig struct {
	MaxLines     int      `toml:"max_lines"`
	AllowedPaths []string `toml:"allowed_paths"`
}

// EvidenceConfig holds evidence freshness policy.
type EvidenceConfig struct {
	FreshnessWindowSeconds int `toml:"freshness_window_seconds"`
}

// AuditConfig holds checklist audit policy. The lookahead window and the
// completion threshold are inherited policy constants, configurable rather
// than hard-coded.
type AuditConfig struct {
	LookaheadLines      int     `toml:"lookahead_lines"`
	CompletionThreshold float64 `toml:"completion_threshold"`
}

// AutoFixConfig holds the tier boundaries of the remediation engine.
type AutoFixConfig struct {
	Tier1 TierConfig `toml:"tier1"`
	Tier2 TierConfig `toml:"tier2"`
	Tier3 TierConfig `toml:"tier3"`
}

// TierConfig bounds one auto-fix tier.
type TierConfig struct {
	ConfidenceMin   float64   `toml:"confidence_min,omitempty"`
	ConfidenceRange []float64 `toml:"confidence_range,omitempty"`
	AlwaysConfirm   bool      `toml:"always_confirm,omitempty"`
}

// LogConfig controls the file logger.
type LogConfig struct {
	Level string `toml:"level"`
}

// NewDefaultConfig returns the built-in defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Enforcement: EnforcementConfig{Mode: EnforceStrict},
		Agents:      AgentsConfig{MinCountDefault: 3},
		Lanes: LanesConfig{
			Fast: FastLaneConfig{MaxLines: 200},
		},
		Evidence: EvidenceConfig{FreshnessWindowSeconds: 3600},
		Audit: AuditConfig{
			LookaheadLines:      5,
			CompletionThreshold: 0.90,
		},
		AutoFix: AutoFixConfig{
			Tier1: TierConfig{ConfidenceMin: 0.95},
			Tier2: TierConfig{ConfidenceRange: []float64{0.70, 0.95}},
			Tier3: TierConfig{AlwaysConfirm: true},
		},
		Log: LogConfig{Level: "info"},
	}
}

// FreshnessWindow returns the evidence freshness window as a duration.
func (c *Config) FreshnessWindow() time.Duration {
	return time.Duration(c.Evidence.FreshnessWindowSeconds) * time.Second
}

// RequiredAgentCount returns the delegated-work minimum for a lane.
// The fast lane never requires delegation.
func (c *Config) RequiredAgentCount(lane Lane) int {
	if lane == LaneFast {
		return 0
	}
	return c.Agents.MinCountDefault
}

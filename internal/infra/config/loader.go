// Package config provides configuration loading functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/mrkwtz/stagegate/internal/domain"
)

// Ensure Loader implements domain.ConfigLoader.
var _ domain.ConfigLoader = (*Loader)(nil)

// Loader loads configuration from TOML files.
type Loader struct {
	stateDir      string // Path to the .stagegate directory
	globalConfDir string // Path to the global config directory (e.g. ~/.config/stagegate)
}

// NewLoader creates a new Loader.
func NewLoader(stateDir string) *Loader {
	return &Loader{
		stateDir:      stateDir,
		globalConfDir: defaultGlobalConfigDir(),
	}
}

// NewLoaderWithGlobalDir creates a Loader with a custom global config
// directory. Useful for testing.
func NewLoaderWithGlobalDir(stateDir, globalConfDir string) *Loader {
	return &Loader{stateDir: stateDir, globalConfDir: globalConfDir}
}

func defaultGlobalConfigDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "stagegate")
}

// Load returns the merged configuration.
// Precedence: defaults <- global <- repo (later wins).
func (l *Loader) Load() (*domain.Config, error) {
	base := domain.NewDefaultConfig()

	if l.globalConfDir != "" {
		if err := l.mergeFile(base, filepath.Join(l.globalConfDir, domain.ConfigFileName)); err != nil {
			return nil, err
		}
	}
	if err := l.mergeFile(base, filepath.Join(l.stateDir, domain.ConfigFileName)); err != nil {
		return nil, err
	}

	if err := validate(base); err != nil {
		return nil, err
	}
	return base, nil
}

// mergeFile overlays one TOML file onto cfg. A missing file is not an
// error; unknown keys become warnings rather than failures.
func (l *Loader) mergeFile(cfg *domain.Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Warnings = append(cfg.Warnings, unknownKeyWarnings(path, data)...)
	return nil
}

// knownSections are the recognized top-level config tables.
var knownSections = map[string]bool{
	"enforcement": true,
	"agents":      true,
	"lanes":       true,
	"evidence":    true,
	"audit":       true,
	"auto_fix":    true,
	"log":         true,
}

func unknownKeyWarnings(path string, data []byte) []string {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil
	}
	var unknown []string
	for section := range raw {
		if !knownSections[section] {
			unknown = append(unknown, section)
		}
	}
	sort.Strings(unknown)
	warnings := make([]string, 0, len(unknown))
	for _, section := range unknown {
		warnings = append(warnings, fmt.Sprintf("unknown section in %s: [%s]", path, section))
	}
	return warnings
}

func validate(cfg *domain.Config) error {
	switch cfg.Enforcement.Mode {
	case domain.EnforceStrict, domain.EnforceAdvisory, domain.EnforceDisabled:
	default:
		return fmt.Errorf("enforcement.mode must be strict, advisory or disabled, got %q", cfg.Enforcement.Mode)
	}
	if cfg.Agents.MinCountDefault < 0 {
		return errors.New("agents.min_count_default must be non-negative")
	}
	if cfg.Evidence.FreshnessWindowSeconds <= 0 {
		return errors.New("evidence.freshness_window_seconds must be positive")
	}
	if cfg.Audit.LookaheadLines < 0 {
		return errors.New("audit.lookahead_lines must be non-negative")
	}
	if cfg.Audit.CompletionThreshold < 0 || cfg.Audit.CompletionThreshold > 1 {
		return errors.New("audit.completion_threshold must be within [0, 1]")
	}
	if r := cfg.AutoFix.Tier2.ConfidenceRange; len(r) != 0 && (len(r) != 2 || r[0] > r[1]) {
		return errors.New("auto_fix.tier2.confidence_range must be [low, high]")
	}
	return nil
}

// WriteDefault writes a commented default config file into the state dir.
// Fails if the file already exists.
func WriteDefault(stateDir string) error {
	path := filepath.Join(stateDir, domain.ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return domain.ErrAlreadyInitialized
	}
	if err := os.MkdirAll(stateDir, 0o750); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigTemplate), 0o644)
}

const defaultConfigTemplate = `# stagegate configuration

[enforcement]
# strict: violations block; advisory: report only; disabled: skip checks
mode = "strict"

[agents]
# Minimum delegated invocations required on the full lane
min_count_default = 3

[lanes.fast]
max_lines = 200
allowed_paths = []

[evidence]
freshness_window_seconds = 3600

[audit]
lookahead_lines = 5
completion_threshold = 0.90

[auto_fix.tier1]
confidence_min = 0.95

[auto_fix.tier2]
confidence_range = [0.70, 0.95]

[auto_fix.tier3]
always_confirm = true

[log]
level = "info"
`

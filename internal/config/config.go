// Package config loads turn-memory settings from a YAML file, environment
// variables and flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/turn-memory/internal/embedding"
	"github.com/rcliao/turn-memory/internal/memory"
	"github.com/rcliao/turn-memory/internal/relevance"
)

// Environment variables.
const (
	EnvDB        = "TURN_MEMORY_DB"
	EnvConfig    = "TURN_MEMORY_CONFIG"
	EnvCapacity  = "TURN_MEMORY_CAPACITY"
	EnvRetention = "TURN_MEMORY_RETENTION"
)

// Config holds the complete configuration.
type Config struct {
	DBPath   string         `yaml:"db_path,omitempty"`
	Memory   MemoryConfig   `yaml:"memory"`
	Gate     GateConfig     `yaml:"gate"`
	Semantic SemanticConfig `yaml:"semantic"`
	Registry RegistryConfig `yaml:"registry"`
	Log      LogConfig      `yaml:"log"`
}

// MemoryConfig sizes the per-subject memory.
type MemoryConfig struct {
	Capacity          int      `yaml:"capacity"`
	Retention         Duration `yaml:"retention"`
	RelevantThreshold float64  `yaml:"relevant_threshold"`
	RecentLimit       int      `yaml:"recent_limit"`
	SummaryLimit      int      `yaml:"summary_limit"`
}

// GateConfig tunes the candidate gate.
type GateConfig struct {
	Window           Duration `yaml:"window"`
	KeywordThreshold float64  `yaml:"keyword_threshold"`
	MaxPerFilter     int      `yaml:"max_per_filter"`
}

// SemanticConfig configures the optional embedding refinement stage.
type SemanticConfig struct {
	Timeout   Duration           `yaml:"timeout"`
	Embedding embedding.Settings `yaml:"embedding"`
}

// RegistryConfig bounds how many subjects stay resident.
type RegistryConfig struct {
	Size int `yaml:"size"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Default returns the built-in configuration.
func Default() *Config {
	gate := relevance.DefaultGateOptions()
	return &Config{
		Memory: MemoryConfig{
			Capacity:          memory.DefaultCapacity,
			Retention:         Duration(memory.DefaultRetention),
			RelevantThreshold: memory.DefaultRelevantThreshold,
			RecentLimit:       memory.DefaultRecentLimit,
			SummaryLimit:      memory.DefaultSummaryLimit,
		},
		Gate: GateConfig{
			Window:           Duration(gate.Window),
			KeywordThreshold: gate.KeywordThreshold,
			MaxPerFilter:     gate.MaxPerFilter,
		},
		Semantic: SemanticConfig{Timeout: Duration(relevance.DefaultCompareTimeout)},
		Registry: RegistryConfig{Size: memory.DefaultRegistrySize},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// DefaultPath returns ~/.turn-memory/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".turn-memory", "config.yaml")
}

// Load reads the config at path over the defaults, then applies environment
// overrides. An empty path means $TURN_MEMORY_CONFIG or DefaultPath; a
// missing default file is not an error, a missing explicit one is.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		if env := os.Getenv(EnvConfig); env != "" {
			path, explicit = env, true
		} else {
			path = DefaultPath()
		}
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvDB); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv(EnvCapacity); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCapacity, err)
		}
		c.Memory.Capacity = n
	}
	if v := os.Getenv(EnvRetention); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRetention, err)
		}
		c.Memory.Retention = Duration(d)
	}
	if env := embedding.SettingsFromEnv(); env.Provider != "" {
		c.Semantic.Embedding = env
	} else if env.APIKey != "" {
		c.Semantic.Embedding.APIKey = env.APIKey
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Memory.Capacity < 1 {
		return fmt.Errorf("memory.capacity must be at least 1")
	}
	if c.Memory.Retention <= 0 {
		return fmt.Errorf("memory.retention must be positive")
	}
	if err := checkUnit("memory.relevant_threshold", c.Memory.RelevantThreshold); err != nil {
		return err
	}
	if c.Memory.RecentLimit < 0 || c.Memory.SummaryLimit < 0 {
		return fmt.Errorf("memory limits must be non-negative")
	}
	if c.Gate.Window <= 0 {
		return fmt.Errorf("gate.window must be positive")
	}
	if err := checkUnit("gate.keyword_threshold", c.Gate.KeywordThreshold); err != nil {
		return err
	}
	if c.Gate.MaxPerFilter < 1 {
		return fmt.Errorf("gate.max_per_filter must be at least 1")
	}
	if c.Semantic.Timeout <= 0 {
		return fmt.Errorf("semantic.timeout must be positive")
	}
	switch c.Semantic.Embedding.Provider {
	case "", "ollama", "openai":
	default:
		return fmt.Errorf("semantic.embedding.provider %q is not supported", c.Semantic.Embedding.Provider)
	}
	if c.Registry.Size < 1 {
		return fmt.Errorf("registry.size must be at least 1")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json")
	}
	return nil
}

// checkUnit accepts thresholds in (0, 1]. Zero is rejected because the
// memory and gate options read it as "use the default".
func checkUnit(name string, v float64) error {
	if v <= 0 || v > 1 {
		return fmt.Errorf("%s must be greater than 0 and at most 1", name)
	}
	return nil
}

// MemoryOptions converts the memory and gate sections.
func (c *Config) MemoryOptions() memory.Options {
	return memory.Options{
		Capacity:          c.Memory.Capacity,
		Retention:         time.Duration(c.Memory.Retention),
		RelevantThreshold: c.Memory.RelevantThreshold,
		RecentLimit:       c.Memory.RecentLimit,
		SummaryLimit:      c.Memory.SummaryLimit,
		Gate: relevance.GateOptions{
			Window:           time.Duration(c.Gate.Window),
			KeywordThreshold: c.Gate.KeywordThreshold,
			MaxPerFilter:     c.Gate.MaxPerFilter,
		},
	}
}

// SlogLevel maps the configured level name.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log.level %q is not one of debug, info, warn, error", l.Level)
}

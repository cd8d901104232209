// Package config loads the watchdog's per-workdir settings from
// .watchdog/config.toml. Every setting is optional; getters fall back to
// defaults when a field is unset.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// StateDirName is the per-workdir directory holding config, hooks and state.
const StateDirName = ".watchdog"

// FileName is the config file inside StateDirName.
const FileName = "config.toml"

// ErrInvalidConfig is returned when the config file is malformed or holds
// out-of-range values.
var ErrInvalidConfig = errors.New("invalid config")

// Defaults.
const (
	DefaultCommand       = "openclaw"
	DefaultActiveMinutes = 10
	DefaultConcurrency   = 8
	DefaultInterval      = 30 * time.Second
	DefaultQueuePath     = "tasks/QUEUE.md"
	DefaultQueueMaxAge   = 24 * time.Hour
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultHistoryPath   = StateDirName + "/history.db"
	DefaultHistoryRetain = 500
)

// Config is the full watchdog configuration.
type Config struct {
	Sessions SessionsConfig `toml:"sessions" json:"sessions" yaml:"sessions"`
	Watch    WatchConfig    `toml:"watch" json:"watch" yaml:"watch"`
	Queue    QueueConfig    `toml:"queue" json:"queue" yaml:"queue"`
	Logging  LoggingConfig  `toml:"logging" json:"logging" yaml:"logging"`
	History  HistoryConfig  `toml:"history" json:"history" yaml:"history"`

	// Repos are the default paths checked by `watchdog dirty`.
	Repos []string `toml:"repos" json:"repos" yaml:"repos"`
}

// SessionsConfig configures session listing and checking.
type SessionsConfig struct {
	// Command is the session runtime binary. Default: "openclaw".
	Command string `toml:"command,omitempty" json:"command,omitempty" yaml:"command,omitempty"`

	// ActiveMinutes is the listing pre-filter passed to `sessions --active`.
	// nil/absent = default (10).
	ActiveMinutes *int `toml:"active_minutes,omitempty" json:"active_minutes,omitempty" yaml:"active_minutes,omitempty"`

	// Concurrency bounds parallel per-session checks. nil/absent = default (8).
	Concurrency *int `toml:"concurrency,omitempty" json:"concurrency,omitempty" yaml:"concurrency,omitempty"`

	// Kinds are extra key patterns registered after the built-in ones.
	Kinds []KindConfig `toml:"kinds,omitempty" json:"kinds,omitempty" yaml:"kinds,omitempty"`
}

// KindConfig maps a session key pattern to a kind.
type KindConfig struct {
	Name    string `toml:"name" json:"name" yaml:"name"`
	Pattern string `toml:"pattern" json:"pattern" yaml:"pattern"`
	Kind    string `toml:"kind" json:"kind" yaml:"kind"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	// Interval between sweeps. Default: "30s".
	Interval string `toml:"interval,omitempty" json:"interval,omitempty" yaml:"interval,omitempty"`

	// FSNotify triggers an early sweep when a session log changes.
	// nil/absent = default (true).
	FSNotify *bool `toml:"fs_notify,omitempty" json:"fs_notify,omitempty" yaml:"fs_notify,omitempty"`
}

// QueueConfig configures the work-queue checks.
type QueueConfig struct {
	Path   string `toml:"path,omitempty" json:"path,omitempty" yaml:"path,omitempty"`
	MaxAge string `toml:"max_age,omitempty" json:"max_age,omitempty" yaml:"max_age,omitempty"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `toml:"level,omitempty" json:"level,omitempty" yaml:"level,omitempty"`
	Format string `toml:"format,omitempty" json:"format,omitempty" yaml:"format,omitempty"`
}

// HistoryConfig configures the sweep history store.
type HistoryConfig struct {
	// Enabled controls whether sweeps are recorded. Default: false.
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `toml:"path,omitempty" json:"path,omitempty" yaml:"path,omitempty"`

	// Retain is the number of sweeps kept. nil/absent = default (500).
	// Explicit 0 keeps everything.
	Retain *int `toml:"retain,omitempty" json:"retain,omitempty" yaml:"retain,omitempty"`
}

// Default returns a Config with every default spelled out.
func Default() *Config {
	activeMinutes := DefaultActiveMinutes
	concurrency := DefaultConcurrency
	fsNotify := true
	retain := DefaultHistoryRetain
	return &Config{
		Sessions: SessionsConfig{
			Command:       DefaultCommand,
			ActiveMinutes: &activeMinutes,
			Concurrency:   &concurrency,
		},
		Watch: WatchConfig{
			Interval: DefaultInterval.String(),
			FSNotify: &fsNotify,
		},
		Queue: QueueConfig{
			Path:   DefaultQueuePath,
			MaxAge: DefaultQueueMaxAge.String(),
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		History: HistoryConfig{
			Path:   DefaultHistoryPath,
			Retain: &retain,
		},
		Repos: []string{},
	}
}

// Path returns the config file location for workDir.
func Path(workDir string) string {
	return filepath.Join(workDir, StateDirName, FileName)
}

// Load reads the config for workDir. A missing file yields an empty Config,
// whose getters return defaults.
func Load(workDir string) (*Config, error) {
	path := Path(workDir)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates TOML config data. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown keys: %s", ErrInvalidConfig, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and duration syntax.
func (c *Config) Validate() error {
	if c.Sessions.ActiveMinutes != nil && *c.Sessions.ActiveMinutes < 1 {
		return fmt.Errorf("%w: sessions.active_minutes must be >= 1", ErrInvalidConfig)
	}
	if c.Sessions.Concurrency != nil && *c.Sessions.Concurrency < 1 {
		return fmt.Errorf("%w: sessions.concurrency must be >= 1", ErrInvalidConfig)
	}
	for _, k := range c.Sessions.Kinds {
		if k.Pattern == "" || k.Kind == "" {
			return fmt.Errorf("%w: sessions.kinds entry %q needs pattern and kind", ErrInvalidConfig, k.Name)
		}
	}
	if err := checkDuration("watch.interval", c.Watch.Interval); err != nil {
		return err
	}
	if err := checkDuration("queue.max_age", c.Queue.MaxAge); err != nil {
		return err
	}
	if c.History.Retain != nil && *c.History.Retain < 0 {
		return fmt.Errorf("%w: history.retain must be >= 0", ErrInvalidConfig)
	}
	return nil
}

func checkDuration(field, s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, field)
	}
	return nil
}

// Save writes cfg as TOML to path, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := Encode(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Encode renders cfg as TOML.
func Encode(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

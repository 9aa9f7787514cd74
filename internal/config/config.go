package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/navstatus/config.yaml"

// TraceEnv enables the event trace sink when set to a true value.
const TraceEnv = "NAVSTATUS_TRACE"

// Config holds all navstatus configuration.
type Config struct {
	Tracker TrackerConfig `yaml:"tracker"`
	Browser BrowserConfig `yaml:"browser"`
	Storage StorageConfig `yaml:"storage"`
	History HistoryConfig `yaml:"history"`
	Logging LoggingConfig `yaml:"logging"`
}

type TrackerConfig struct {
	TimeoutMs      int  `yaml:"timeout_ms"`
	PollIntervalMs int  `yaml:"poll_interval_ms"`
	IdlePolls      int  `yaml:"idle_polls"`
	Trace          bool `yaml:"trace"`
}

// Timeout returns the settle timeout as a duration.
func (t TrackerConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutMs) * time.Millisecond
}

// PollInterval returns the pending-counter poll interval as a duration.
func (t TrackerConfig) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalMs) * time.Millisecond
}

type BrowserConfig struct {
	Engine              string `yaml:"engine"`
	Headless            bool   `yaml:"headless"`
	Bin                 string `yaml:"bin"`
	DebuggerURL         string `yaml:"debugger_url"`
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms"`
}

// NavigationTimeout returns the navigation timeout as a duration.
func (b BrowserConfig) NavigationTimeout() time.Duration {
	return time.Duration(b.NavigationTimeoutMs) * time.Millisecond
}

type StorageConfig struct {
	Path       string `yaml:"path"`
	SQLiteFile string `yaml:"sqlite_file"`
}

type HistoryConfig struct {
	RetentionDays  int      `yaml:"retention_days"`
	ExcludeDomains []string `yaml:"exclude_domains"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overlays environment overrides.
func (c *Config) applyEnv() error {
	v, ok := os.LookupEnv(TraceEnv)
	if !ok || v == "" {
		return nil
	}
	on, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", TraceEnv, err)
	}
	c.Tracker.Trace = on
	return nil
}

// Validate rejects values the tracker and browser cannot run with.
func (c *Config) Validate() error {
	if c.Tracker.TimeoutMs <= 0 {
		return fmt.Errorf("tracker.timeout_ms must be positive, got %d", c.Tracker.TimeoutMs)
	}
	if c.Tracker.PollIntervalMs <= 0 {
		return fmt.Errorf("tracker.poll_interval_ms must be positive, got %d", c.Tracker.PollIntervalMs)
	}
	if c.Tracker.IdlePolls <= 0 {
		return fmt.Errorf("tracker.idle_polls must be positive, got %d", c.Tracker.IdlePolls)
	}
	switch c.Browser.Engine {
	case "rod", "chromedp":
	default:
		return fmt.Errorf("browser.engine must be rod or chromedp, got %q", c.Browser.Engine)
	}
	if c.Browser.NavigationTimeoutMs <= 0 {
		return fmt.Errorf("browser.navigation_timeout_ms must be positive, got %d", c.Browser.NavigationTimeoutMs)
	}
	if c.History.RetentionDays < 0 {
		return fmt.Errorf("history.retention_days must not be negative, got %d", c.History.RetentionDays)
	}
	return nil
}

// DBPath returns the expanded path of the SQLite history database.
func (c *Config) DBPath() (string, error) {
	dir, err := ExpandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := ExpandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		if err := cfg.applyEnv(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	return Load(path)
}

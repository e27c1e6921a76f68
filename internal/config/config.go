package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marcin-skalski/repo-manager/internal/sortorder"
)

type Config struct {
	StateFile       string        `yaml:"state_file"`
	Workdir         string        `yaml:"workdir"`
	LogFile         string        `yaml:"log_file"`
	CloneDir        string        `yaml:"clone_dir"`
	SearchPaths     []string      `yaml:"search_paths"`
	SortOrder       string        `yaml:"sort_order"`
	RefreshInterval time.Duration `yaml:"-"`
	RawInterval     string        `yaml:"refresh_interval"`
	Concurrency     int           `yaml:"concurrency"`
	Log             LogConfig     `yaml:"log"`
	TUI             TUIConfig     `yaml:"tui"`
	GitHub          GitHubConfig  `yaml:"github"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type TUIConfig struct {
	RefreshInterval time.Duration `yaml:"-"`
	RawInterval     string        `yaml:"refresh_interval"`
}

type GitHubConfig struct {
	// User overrides the login reported by gh.
	User string `yaml:"user"`
}

// DefaultPath is where the config is looked up when no --config is given.
func DefaultPath() string {
	return filepath.Join(homeDir(), ".repo-manager", "config.yaml")
}

// Load reads path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() error {
	if c.Workdir == "" {
		c.Workdir = filepath.Join(homeDir(), ".repo-manager")
	}
	c.Workdir = expandHome(c.Workdir)
	if c.StateFile == "" {
		c.StateFile = filepath.Join(c.Workdir, "state.json")
	}
	c.StateFile = expandHome(c.StateFile)
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.Workdir, "logs", "repo-manager.log")
	}
	c.LogFile = expandHome(c.LogFile)
	if c.CloneDir == "" {
		c.CloneDir = filepath.Join(homeDir(), "src")
	}
	c.CloneDir = expandHome(c.CloneDir)
	if c.SearchPaths == nil {
		c.SearchPaths = []string{c.CloneDir}
	}
	for i := range c.SearchPaths {
		c.SearchPaths[i] = expandHome(c.SearchPaths[i])
	}
	if c.SortOrder == "" {
		c.SortOrder = string(sortorder.Default)
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.RawInterval == "" {
		c.RawInterval = "5m"
	}
	d, err := time.ParseDuration(c.RawInterval)
	if err != nil {
		return fmt.Errorf("parse refresh_interval %q: %w", c.RawInterval, err)
	}
	c.RefreshInterval = d

	if c.TUI.RawInterval == "" {
		c.TUI.RawInterval = "3s"
	}
	tuiInterval, err := time.ParseDuration(c.TUI.RawInterval)
	if err != nil {
		return fmt.Errorf("parse tui.refresh_interval %q: %w", c.TUI.RawInterval, err)
	}
	if tuiInterval <= 0 {
		return fmt.Errorf("tui.refresh_interval must be positive, got %s", c.TUI.RawInterval)
	}
	c.TUI.RefreshInterval = tuiInterval

	return nil
}

func (c *Config) validate() error {
	if c.RefreshInterval < 0 {
		return fmt.Errorf("refresh_interval must not be negative, got %s", c.RawInterval)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if _, err := sortorder.Parse(c.SortOrder); err != nil {
		return fmt.Errorf("sort_order: %w", err)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q (debug|info|warn|error)", c.Log.Level)
	}
	for i, p := range c.SearchPaths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("search_paths[%d]: empty path", i)
		}
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func expandHome(p string) string {
	if p == "~" {
		return homeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(homeDir(), p[2:])
	}
	return p
}

// Package config loads changelens configuration from
// .changelens/config.yaml with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all changelens configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Transcript ingestion and storage
	Transcript TranscriptConfig `yaml:"transcript"`

	// Version-control status fetching
	VCS VCSConfig `yaml:"vcs"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// TranscriptConfig configures transcript ingestion and storage.
type TranscriptConfig struct {
	// Directory of per-session *.jsonl transcript files to watch
	Dir string `yaml:"dir"`

	// SQLite database holding sessions, messages, and parts
	DatabasePath string `yaml:"database_path"`
}

// VCSConfig configures status fetching and synthesis timing.
type VCSConfig struct {
	// Git binary, resolved from PATH when bare
	GitBinary string `yaml:"git_binary"`

	// How long to let a completed turn settle before inspecting the tree
	SettleDelay string `yaml:"settle_delay"`

	// Upper bound on a single status fetch
	FetchTimeout string `yaml:"fetch_timeout"`
}

// LoggingConfig configures the categorized file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "changelens",
		Version: "0.3.0",

		Transcript: TranscriptConfig{
			Dir:          ".changelens/transcripts",
			DatabasePath: ".changelens/transcripts.db",
		},

		VCS: VCSConfig{
			GitBinary:    "git",
			SettleDelay:  "2s",
			FetchTimeout: "10s",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads .changelens/config.yaml under workspace, falling back to
// defaults when the file is absent. Environment overrides are applied last.
func Load(workspace string) (*Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(workspace, ".changelens", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies CHANGELENS_* environment variables on top of
// whatever the file provided.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CHANGELENS_TRANSCRIPT_DIR"); v != "" {
		c.Transcript.Dir = v
	}
	if v := os.Getenv("CHANGELENS_DB"); v != "" {
		c.Transcript.DatabasePath = v
	}
	if v := os.Getenv("CHANGELENS_GIT_BIN"); v != "" {
		c.VCS.GitBinary = v
	}
	if v := os.Getenv("CHANGELENS_SETTLE_DELAY"); v != "" {
		c.VCS.SettleDelay = v
	}
	if v := os.Getenv("CHANGELENS_FETCH_TIMEOUT"); v != "" {
		c.VCS.FetchTimeout = v
	}
}

// SettleDelay parses the settle delay, falling back to the default on a
// bad value. The settle-before-inspect intent holds even when misconfigured.
func (v VCSConfig) SettleDelayDuration() time.Duration {
	return parseDuration(v.SettleDelay, 2*time.Second)
}

// FetchTimeoutDuration parses the fetch timeout, falling back to the default.
func (v VCSConfig) FetchTimeoutDuration() time.Duration {
	return parseDuration(v.FetchTimeout, 10*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ResolvePath resolves a possibly-relative configured path against workspace.
func ResolvePath(workspace, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workspace, path)
}

// Package config provides unified configuration loading for darkforest.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// DarkForestConfig contains all darkforest configuration settings.
type DarkForestConfig struct {
	// Store selects and locates the session store.
	Store StoreConfig `json:"store" yaml:"store"`

	// Logging contains settings for operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Report controls exported result files.
	Report ReportConfig `json:"report" yaml:"report"`

	// Room contains multiplayer room limits.
	Room RoomConfig `json:"room" yaml:"room"`
}

// StoreConfig configures session persistence.
type StoreConfig struct {
	// Driver is "sqlite" (default) or "memory". The memory driver keeps
	// nothing between runs.
	Driver string `json:"driver" yaml:"driver"`

	// Path overrides the SQLite database location. Supports ${VAR} syntax.
	// Empty means <root>/.darkforest/darkforest.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoggingConfig configures darkforest's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables decision logging to .darkforest/decisions.jsonl.
	Level string `json:"level" yaml:"level"`
}

// ReportConfig configures result exports.
type ReportConfig struct {
	// Compress writes header+gzip archives instead of plain JSON.
	Compress bool `json:"compress" yaml:"compress"`

	// Dir is the default output directory. Supports ${VAR} syntax.
	// Empty means <root>/.darkforest/reports.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// RoomConfig configures multiplayer rooms.
type RoomConfig struct {
	// MaxParticipants caps room size. Zero means unlimited.
	MaxParticipants int `json:"max_participants" yaml:"max_participants"`
}

// Default returns a DarkForestConfig with sensible defaults.
func Default() *DarkForestConfig {
	return &DarkForestConfig{
		Store: StoreConfig{
			Driver: DriverSQLite,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Report: ReportConfig{
			Compress: false,
		},
		Room: RoomConfig{
			MaxParticipants: 0,
		},
	}
}

// Path returns the global config file location, ~/.darkforest/config.yaml.
func Path() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".darkforest", "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.darkforest/config.yaml -> environment variables
func Load() (*DarkForestConfig, error) {
	config := Default()

	if configPath, err := Path(); err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*DarkForestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Store.Path = expandEnvVars(config.Store.Path)
	config.Report.Dir = expandEnvVars(config.Report.Dir)

	return config, nil
}

// Save writes the configuration to path, creating its directory.
func Save(path string, c *DarkForestConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *DarkForestConfig) Validate() error {
	switch c.Store.Driver {
	case "", DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("invalid store driver: %s (valid: sqlite, memory)", c.Store.Driver)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	if c.Room.MaxParticipants < 0 {
		return fmt.Errorf("max_participants must be non-negative, got %d", c.Room.MaxParticipants)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *DarkForestConfig) {
	if v := os.Getenv("DARKFOREST_STORE_DRIVER"); v != "" {
		config.Store.Driver = v
	}

	if v := os.Getenv("DARKFOREST_DB_PATH"); v != "" {
		config.Store.Path = expandEnvVars(v)
	}

	if v := os.Getenv("DARKFOREST_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("DARKFOREST_REPORT_COMPRESS"); v != "" {
		config.Report.Compress = v == "true" || v == "1"
	}

	if v := os.Getenv("DARKFOREST_REPORT_DIR"); v != "" {
		config.Report.Dir = expandEnvVars(v)
	}

	if v := os.Getenv("DARKFOREST_ROOM_MAX_PARTICIPANTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Room.MaxParticipants = n
		}
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}

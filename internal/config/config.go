// Package config provides configuration management for the exporter
// agent. Configuration is loaded from environment variables with
// sensible defaults; a .env file is honored when present.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// Default values
	DefaultPort     = 8787
	DefaultLogLevel = "info"
	DefaultDataDir  = ".storyboard-exporter"

	// Environment variable names
	EnvPort       = "STORYBOARD_PORT"
	EnvLogLevel   = "STORYBOARD_LOG_LEVEL"
	EnvDataDir    = "STORYBOARD_DATA_DIR"
	EnvFFmpegPath = "STORYBOARD_FFMPEG_PATH"
	EnvHeadless   = "STORYBOARD_HEADLESS"

	// Database filename
	DBFilename = "exporter.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ExportsDir() string
	FFmpegPath() string
	Headless() bool
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port       int
	logLevel   string
	dataDir    string
	ffmpegPath string
	headless   bool
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:     DefaultPort,
		logLevel: DefaultLogLevel,
		dataDir:  defaultDataDir(),
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.ffmpegPath = os.Getenv(EnvFFmpegPath)

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ExportsDir returns the directory finished exports are written to
func (c *EnvConfig) ExportsDir() string {
	return filepath.Join(c.dataDir, "exports")
}

// FFmpegPath returns the ffmpeg binary path; empty means look up PATH
func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

// Headless reports whether the system tray should be skipped
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	toml "github.com/pelletier/go-toml/v2"
)

var (
	ErrInvalidTOML        = errors.New("invalid config TOML")
	ErrInvalidDebugLevel  = errors.New("debug_level must be a level or a comma-separated subsys=level list")
	ErrInvalidMaxLogFiles = errors.New("max_log_files must not be negative")
)

// Config holds the global huddle configuration.
type Config struct {
	DataDir     string `toml:"data_dir"`      // store and logs live under here
	LogFile     string `toml:"log_file"`      // "" disables file logging; relative paths land under <data_dir>/logs
	DebugLevel  string `toml:"debug_level"`   // "info" or "warn,STOR=trace,..."
	SnapshotKey string `toml:"snapshot_key"`  // non-empty pins a stable snapshot key
	Ephemeral   bool   `toml:"ephemeral"`     // run without a store
	MaxLogFiles int    `toml:"max_log_files"` // rolled log files kept by the rotator
}

// Default returns the built-in settings used when the config file is
// missing or partial.
func Default() Config {
	return Config{
		DataDir:     "~/.huddle",
		LogFile:     "huddle.log",
		DebugLevel:  "info",
		MaxLogFiles: 3,
	}
}

// Load reads the config from ~/.config/huddle/config.toml.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(homeDir, ".config", "huddle", "config.toml")
	return LoadFrom(configPath)
}

// LoadFrom reads the config from a specific path. A missing file is not an
// error: the defaults apply, overlaid with whatever the file sets.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil && len(data) > 0 {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, ErrInvalidTOML
		}
	}

	if cfg.MaxLogFiles < 0 {
		return nil, ErrInvalidMaxLogFiles
	}
	for _, v := range strings.Split(cfg.DebugLevel, ",") {
		if strings.Count(v, "=") > 1 {
			return nil, ErrInvalidDebugLevel
		}
	}

	return &cfg, nil
}

// StoreDir returns the expanded directory the local store lives in.
func (c *Config) StoreDir() (string, error) {
	dir, err := homedir.Expand(c.DataDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "store"), nil
}

// LogPath returns the expanded log file location, or "" when file logging
// is disabled. Relative names are placed under <data_dir>/logs.
func (c *Config) LogPath() (string, error) {
	if c.LogFile == "" {
		return "", nil
	}
	logFile, err := homedir.Expand(c.LogFile)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(logFile) {
		return logFile, nil
	}
	dir, err := homedir.Expand(c.DataDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs", logFile), nil
}

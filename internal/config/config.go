// Package config loads and saves the application configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// RemoteConfig holds the connection settings for the sync backend. The
// access token is kept in the system keyring, not here.
type RemoteConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	OwnerID string `mapstructure:"owner_id" yaml:"owner_id"`
}

// SyncConfig tunes the sync engine and its background poller.
type SyncConfig struct {
	IntervalSec    int `mapstructure:"interval_sec" yaml:"interval_sec"`
	ItemTimeoutSec int `mapstructure:"item_timeout_sec" yaml:"item_timeout_sec"`
}

// StoreConfig tunes the collection store.
type StoreConfig struct {
	SaveDebounceMs int `mapstructure:"save_debounce_ms" yaml:"save_debounce_ms"`
	UndoLimit      int `mapstructure:"undo_limit" yaml:"undo_limit"`
	UndoTTLSec     int `mapstructure:"undo_ttl_sec" yaml:"undo_ttl_sec"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	DBPath string       `mapstructure:"db_path" yaml:"db_path"`
	Remote RemoteConfig `mapstructure:"remote" yaml:"remote"`
	Sync   SyncConfig   `mapstructure:"sync" yaml:"sync"`
	Store  StoreConfig  `mapstructure:"store" yaml:"store"`
}

// DefaultConfigPath returns the default path for the configuration
// file, located at ~/.config/tasktick/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "tasktick", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	home, err := os.UserHomeDir()
	dataDir := "."
	if err == nil {
		dataDir = filepath.Join(home, ".local", "share", "tasktick")
	}
	return &AppConfig{
		DBPath: filepath.Join(dataDir, "state.db"),
		Sync: SyncConfig{
			IntervalSec:    120,
			ItemTimeoutSec: 30,
		},
		Store: StoreConfig{
			SaveDebounceMs: 500,
			UndoLimit:      20,
			UndoTTLSec:     30,
		},
	}
}

// Load reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	defaults := defaultAppConfig()
	v.SetDefault("db_path", defaults.DBPath)
	v.SetDefault("sync.interval_sec", defaults.Sync.IntervalSec)
	v.SetDefault("sync.item_timeout_sec", defaults.Sync.ItemTimeoutSec)
	v.SetDefault("store.save_debounce_ms", defaults.Store.SaveDebounceMs)
	v.SetDefault("store.undo_limit", defaults.Store.UndoLimit)
	v.SetDefault("store.undo_ttl_sec", defaults.Store.UndoTTLSec)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaults, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the given configuration to a YAML file at path, creating
// parent directories if needed.
func Save(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("db_path", cfg.DBPath)
	v.Set("remote", cfg.Remote)
	v.Set("sync", cfg.Sync)
	v.Set("store", cfg.Store)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

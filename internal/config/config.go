package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration
type Config struct {
	BackupRoot string                   `yaml:"backup_root"`
	HistoryDB  string                   `yaml:"history_db"`
	Encryption EncryptionConfig         `yaml:"encryption"`
	Browsers   map[string]BrowserConfig `yaml:"browsers"`
}

// EncryptionConfig holds optional at-rest encryption settings. Both
// paths point at age key files; when RecipientsFile is empty archives
// are written unencrypted.
type EncryptionConfig struct {
	RecipientsFile string `yaml:"recipients_file"`
	IdentityFile   string `yaml:"identity_file"`
}

// BrowserConfig overrides per-browser discovery settings
type BrowserConfig struct {
	DataDir string `yaml:"data_dir"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	root := "profilevault-backups"
	db := "profilevault.db"
	if home, err := os.UserHomeDir(); err == nil {
		root = filepath.Join(home, ".local", "share", "profilevault", "backups")
		db = filepath.Join(home, ".local", "share", "profilevault", "profilevault.db")
	}
	return &Config{
		BackupRoot: root,
		HistoryDB:  db,
		Browsers:   make(map[string]BrowserConfig),
	}
}

// Load reads a config file from the given path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() (string, error) {
	searchPaths := []string{
		"profilevault.yaml",
		"/etc/profilevault/profilevault.yaml",
	}

	// Add user config path
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths,
			filepath.Join(home, ".config", "profilevault", "profilevault.yaml"),
		)
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", searchPaths)
}

// BrowserDataDir returns the configured data directory override for a
// browser, or "" when discovery should use the platform default.
func (c *Config) BrowserDataDir(name string) string {
	bc, ok := c.Browsers[name]
	if !ok {
		return ""
	}
	return bc.DataDir
}

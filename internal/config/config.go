package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"
)

// DefaultPreserve are the player-data patterns protected from merges
// when the config does not set its own preserve list.
var DefaultPreserve = []string{"save*-ext.dat", "save*.sav", "progress.json"}

// DefaultMarkerExt is the file extension that marks an episode root.
const DefaultMarkerExt = ".wld"

// Config represents the main configuration for epu.
type Config struct {
	EpisodesDir string         `toml:"episodes_dir"`
	EpisodeURL  string         `toml:"episode_url"`
	MarkerExt   string         `toml:"marker_ext,omitempty"` // episode root marker extension, defaults to .wld
	Preserve    []string       `toml:"preserve,omitempty"`   // replaces the default preserve list when set
	BaseDir     string         `toml:"base_dir"`
	LogDir      string         `toml:"log_dir"`
	CacheDir    string         `toml:"cache_dir"`
	Database    DatabaseConfig `toml:"database"`
	Vault       VaultConfig    `toml:"vault"`
	Backup      BackupConfig   `toml:"backup"`
}

// DatabaseConfig represents configuration for the history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// VaultConfig represents configuration for a backup vault backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"`           // "memory", "s3", or "filesystem"
	Root string `toml:"root,omitempty"` // only used for type=filesystem

	// S3-specific fields (only used when Type == "s3")
	S3 S3Config `toml:"s3"`
}

// S3Config holds the settings for an S3 (or S3-compatible) vault.
type S3Config struct {
	Bucket          string `toml:"bucket,omitempty"`
	Prefix          string `toml:"prefix,omitempty"`
	Region          string `toml:"region,omitempty"`
	Endpoint        string `toml:"endpoint,omitempty"`
	AccessKeyID     string `toml:"access_key_id,omitempty"`
	SecretAccessKey string `toml:"secret_access_key,omitempty"`
}

// BackupConfig holds settings for pre-update backups.
type BackupConfig struct {
	// EncryptRecipient holds age recipients to encrypt backups to,
	// one per line. Empty disables encryption.
	EncryptRecipient string `toml:"encrypt_recipient,omitempty"`
}

// NewConfig creates a new Config with the provided values and defaults
// for everything derived from the base directory.
func NewConfig(episodesDir, episodeURL, baseDir string) *Config {
	return &Config{
		EpisodesDir: episodesDir,
		EpisodeURL:  episodeURL,
		BaseDir:     baseDir,
		LogDir:      filepath.Join(baseDir, "log"),
		CacheDir:    filepath.Join(baseDir, "cache"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		// The filesystem vault shares the cache root so one directory
		// holds both stage/ trees and backups/.
		Vault: VaultConfig{
			Type: "filesystem",
			Root: filepath.Join(baseDir, "cache"),
		},
	}
}

// PreservePatterns returns the configured preserve globs, or the
// defaults when the config does not set any.
func (c *Config) PreservePatterns() []string {
	if len(c.Preserve) > 0 {
		return slices.Clone(c.Preserve)
	}
	return slices.Clone(DefaultPreserve)
}

// MarkerExtension returns the configured episode marker extension, or
// the default when unset.
func (c *Config) MarkerExtension() string {
	if c.MarkerExt != "" {
		return c.MarkerExt
	}
	return DefaultMarkerExt
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Save persists a Config to the specified file path, overwriting any
// existing file. Used when settings change after initialization.
func Save(path string, cfg *Config) error {
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

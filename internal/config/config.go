package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config contains the program configuration.
type Config struct {
	Verbose      bool `yaml:"verbose"`
	DryRun       bool `yaml:"dry_run"`
	ParallelJobs int  `yaml:"parallel_jobs"`

	// Resolution behavior
	Enable             bool     `yaml:"enable"`
	MinConfidence      float64  `yaml:"min_confidence"`
	PreferExistingTags bool     `yaml:"prefer_existing_tags"`
	FetchCoverArt      bool     `yaml:"fetch_cover_art"`
	MaxArtworkBytes    int64    `yaml:"max_artwork_bytes"`
	Providers          []string `yaml:"providers"` // priority order

	// Provider credentials
	AcoustIDAPIKey       string `yaml:"acoustid_api_key"`
	MusicBrainzUserAgent string `yaml:"musicbrainz_user_agent"`
	LastFMAPIKey         string `yaml:"lastfm_api_key"`
	DiscogsUserAgent     string `yaml:"discogs_user_agent"`
	DiscogsToken         string `yaml:"discogs_token"`
	SpotifyClientID      string `yaml:"spotify_client_id"`
	SpotifyClientSecret  string `yaml:"spotify_client_secret"`

	// Tools and storage
	FpcalcPath string `yaml:"fpcalc_path"`
	CachePath  string `yaml:"cache_path"`
}

// Credential environment variables, applied when the config file leaves
// the matching field empty.
var envCredentials = map[string]func(*Config, string){
	"TUNETAG_ACOUSTID_API_KEY":      func(c *Config, v string) { c.AcoustIDAPIKey = v },
	"TUNETAG_LASTFM_API_KEY":        func(c *Config, v string) { c.LastFMAPIKey = v },
	"TUNETAG_DISCOGS_TOKEN":         func(c *Config, v string) { c.DiscogsToken = v },
	"TUNETAG_SPOTIFY_CLIENT_ID":     func(c *Config, v string) { c.SpotifyClientID = v },
	"TUNETAG_SPOTIFY_CLIENT_SECRET": func(c *Config, v string) { c.SpotifyClientSecret = v },
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Verbose:            false,
		DryRun:             false,
		ParallelJobs:       4,
		Enable:             true,
		MinConfidence:      0.5,
		PreferExistingTags: true,
		FetchCoverArt:      true,
		Providers:          []string{"musicbrainz", "spotify", "lastfm", "discogs"},
	}
}

// LoadConfigFile loads configuration from a YAML file.
// If path is empty, searches standard locations. Returns defaults if no
// file found. Credentials left empty in the file are filled from the
// environment.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = FindConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	for env, set := range envCredentials {
		if v := os.Getenv(env); v != "" {
			set(&cfg, v)
		}
	}

	cfg.CachePath = ExpandHome(cfg.CachePath)

	return cfg, nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// FindConfigFile searches for a config file in standard locations.
func FindConfigFile() string {
	home := homeDir()
	locations := []string{
		"./tunetag.yaml",
		"./tunetag.yml",
		filepath.Join(home, ".config", "tunetag", "config.yaml"),
		filepath.Join(home, ".config", "tunetag", "config.yml"),
		filepath.Join(home, ".tunetag.yaml"),
		filepath.Join(home, ".tunetag.yml"),
	}

	for _, path := range locations {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// SaveConfigFile saves the current configuration to a YAML file.
func SaveConfigFile(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// 0600: the file may hold credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPath returns the default config file path.
func GetDefaultConfigPath() string {
	return filepath.Join(homeDir(), ".config", "tunetag", "config.yaml")
}

// GetDefaultLogPath returns the default log directory path.
func GetDefaultLogPath() string {
	return filepath.Join(homeDir(), ".local", "share", "tunetag", "logs")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

var validProviders = map[string]bool{
	"musicbrainz": true,
	"lastfm":      true,
	"discogs":     true,
	"spotify":     true,
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ParallelJobs < 1 {
		return fmt.Errorf("parallel_jobs must be at least 1, got %d", c.ParallelJobs)
	}
	if c.ParallelJobs > 10 {
		return fmt.Errorf("parallel_jobs cannot exceed 10 (to avoid provider rate limiting), got %d", c.ParallelJobs)
	}

	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be between 0.0 and 1.0, got %.2f", c.MinConfidence)
	}

	if c.MaxArtworkBytes < 0 {
		return fmt.Errorf("max_artwork_bytes cannot be negative, got %d", c.MaxArtworkBytes)
	}

	for _, p := range c.Providers {
		if !validProviders[p] {
			return fmt.Errorf("unknown metadata provider %q, valid providers: musicbrainz, lastfm, discogs, spotify", p)
		}
	}

	return nil
}

// MissingCredential returns the name of the config key a provider needs
// but is missing, or "" when the provider is usable. Missing credentials
// are not a validation error: the provider is skipped for the run so a
// credential-less install still resolves via the open catalogs.
func (c *Config) MissingCredential(provider string) string {
	switch provider {
	case "lastfm":
		if c.LastFMAPIKey == "" {
			return "lastfm_api_key"
		}
	case "discogs":
		if c.DiscogsUserAgent == "" {
			return "discogs_user_agent"
		}
	case "spotify":
		if c.SpotifyClientID == "" {
			return "spotify_client_id"
		}
		if c.SpotifyClientSecret == "" {
			return "spotify_client_secret"
		}
	}
	return ""
}

// HasProvider reports whether a provider is in the configured priority list.
func (c *Config) HasProvider(name string) bool {
	for _, p := range c.Providers {
		if p == name {
			return true
		}
	}
	return false
}

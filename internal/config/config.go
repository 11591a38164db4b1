// Package config loads and persists deckforge configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	// Cache configuration
	Cache CacheConfig `toml:"cache"`

	// Deck service configuration
	Deck DeckConfig `toml:"deck"`

	// Scryfall API configuration
	Scryfall ScryfallConfig `toml:"scryfall"`

	// Tagger API configuration
	Tagger TaggerConfig `toml:"tagger"`

	// Logging configuration
	Log LogConfig `toml:"log"`
}

// CacheConfig contains persistent cache settings.
type CacheConfig struct {
	Path    string `toml:"path"`     // Path to the SQLite cache database
	CardTTL string `toml:"card_ttl"` // Validity window for card data (e.g. "24h")
	TagTTL  string `toml:"tag_ttl"`  // Validity window for functional tags (e.g. "12h")
}

// DeckConfig contains deck service settings.
type DeckConfig struct {
	BaseURL string `toml:"base_url"` // Deck service API base URL
}

// ScryfallConfig contains card data service settings.
type ScryfallConfig struct {
	BaseURL     string `toml:"base_url"`      // Scryfall API base URL
	RateLimitMS int    `toml:"rate_limit_ms"` // Minimum spacing between requests
}

// TaggerConfig contains tag service settings.
type TaggerConfig struct {
	BaseURL     string `toml:"base_url"`      // Tagger API base URL
	RateLimitMS int    `toml:"rate_limit_ms"` // Minimum spacing between requests
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `toml:"level"`  // Minimum log level
	Pretty bool   `toml:"pretty"` // Human-readable console output
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Path:    "",
			CardTTL: "24h",
			TagTTL:  "12h",
		},
		Deck: DeckConfig{
			BaseURL: "https://api2.moxfield.com",
		},
		Scryfall: ScryfallConfig{
			BaseURL:     "https://api.scryfall.com",
			RateLimitMS: 100,
		},
		Tagger: TaggerConfig{
			BaseURL:     "https://tagger.scryfall.com",
			RateLimitMS: 100,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: false,
		},
	}
}

// configPath returns the path to the configuration file.
func configPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".deckforge")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}

	return filepath.Join(configDir, "config.toml"), nil
}

// Load loads the configuration from disk. Returns default config if file doesn't exist.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &config, nil
}

// Save saves the configuration to disk.
func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Cache.CardTTL); err != nil {
		return fmt.Errorf("invalid card TTL %q: %w", c.Cache.CardTTL, err)
	}

	if _, err := time.ParseDuration(c.Cache.TagTTL); err != nil {
		return fmt.Errorf("invalid tag TTL %q: %w", c.Cache.TagTTL, err)
	}

	if c.Scryfall.RateLimitMS < 0 {
		return fmt.Errorf("scryfall rate limit cannot be negative: %d", c.Scryfall.RateLimitMS)
	}

	if c.Tagger.RateLimitMS < 0 {
		return fmt.Errorf("tagger rate limit cannot be negative: %d", c.Tagger.RateLimitMS)
	}

	return nil
}

// CardTTL returns the card data TTL as a duration.
func (c *Config) CardTTL() (time.Duration, error) {
	return time.ParseDuration(c.Cache.CardTTL)
}

// TagTTL returns the functional tag TTL as a duration.
func (c *Config) TagTTL() (time.Duration, error) {
	return time.ParseDuration(c.Cache.TagTTL)
}

// CachePath returns the path to the cache database, defaulting to
// ~/.deckforge/cache.db when unset.
func (c *Config) CachePath() (string, error) {
	if c.Cache.Path != "" {
		return c.Cache.Path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".deckforge", "cache.db"), nil
}

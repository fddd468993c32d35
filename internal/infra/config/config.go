// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Admin    AdminConfig    `yaml:"admin"`
	Cache    CacheConfig    `yaml:"cache"`
	Playback PlaybackConfig `yaml:"playback"`
	Prefetch PrefetchConfig `yaml:"prefetch"`
	Fetcher  FetcherConfig  `yaml:"fetcher"`
	Device   DeviceConfig   `yaml:"device"`
	Search   SearchConfig   `yaml:"search"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// AdminConfig represents admin-related configuration.
// An empty token leaves transport commands open to every client.
type AdminConfig struct {
	Token string `yaml:"token"`
}

// CacheConfig represents the track cache configuration.
type CacheConfig struct {
	Dir              string `yaml:"dir" default:"audio_files" validate:"required"`
	MaxEntries       int    `yaml:"max_entries" default:"0" validate:"gte=0"`
	PlaceholderTitle string `yaml:"placeholder_title" default:"Cached Audio"`
}

// PlaybackConfig represents playback timing configuration.
type PlaybackConfig struct {
	TickIntervalMs int `yaml:"tick_interval_ms" default:"1000" validate:"gte=10,lte=60000"`
	PollIntervalMs int `yaml:"poll_interval_ms" default:"1000" validate:"gte=10,lte=60000"`
}

// TickInterval returns the wall time per position second.
func (p PlaybackConfig) TickInterval() time.Duration {
	return time.Duration(p.TickIntervalMs) * time.Millisecond
}

// PollInterval returns the wait between idle scheduler cycles.
func (p PlaybackConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMs) * time.Millisecond
}

// PrefetchConfig represents background prefetch configuration.
type PrefetchConfig struct {
	Disabled    bool `yaml:"disabled"`
	IntervalMs  int  `yaml:"interval_ms" default:"5000" validate:"gte=100"`
	Concurrency int  `yaml:"concurrency" default:"2" validate:"gte=1,lte=16"`
}

// Interval returns the wait between backlog scans.
func (p PrefetchConfig) Interval() time.Duration {
	return time.Duration(p.IntervalMs) * time.Millisecond
}

// FetcherConfig represents yt-dlp configuration.
type FetcherConfig struct {
	Format       string `yaml:"format" default:"bestaudio/best"`
	AudioFormat  string `yaml:"audio_format" default:"mp3" validate:"required,oneof=mp3"`
	AudioQuality string `yaml:"audio_quality" default:"192K"`
	Proxy        string `yaml:"proxy"`
	AutoInstall  bool   `yaml:"auto_install"`
}

// DeviceConfig represents the audio output configuration.
type DeviceConfig struct {
	Type     string         `yaml:"type" default:"speaker" validate:"oneof=speaker null"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// SearchConfig represents search configuration.
type SearchConfig struct {
	Limit     int              `yaml:"limit" default:"10" validate:"gte=1,lte=50"`
	Providers []ProviderConfig `yaml:"providers" validate:"dive"`
}

// ProviderConfig represents a single search provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings,omitempty"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	_ = defaults.Set(&cfg)
	return &cfg
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
	if v := os.Getenv("YOUTUBE_PROXY"); v != "" {
		c.Fetcher.Proxy = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.setProviderSetting("spotify", "client_id", v)
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.setProviderSetting("spotify", "client_secret", v)
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		c.setProviderSetting("lastfm", "api_key", v)
	}
}

// setProviderSetting sets key on every provider of the given type.
func (c *Config) setProviderSetting(providerType, key, value string) {
	for i := range c.Search.Providers {
		if c.Search.Providers[i].Type != providerType {
			continue
		}
		if c.Search.Providers[i].Settings == nil {
			c.Search.Providers[i].Settings = make(map[string]any)
		}
		c.Search.Providers[i].Settings[key] = value
	}
}

// AdminEnabled reports whether transport commands require the admin token.
func (c *Config) AdminEnabled() bool {
	return c.Admin.Token != ""
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

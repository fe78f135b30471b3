package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abelbrown/soundprints/internal/feed"
	"github.com/abelbrown/soundprints/internal/remote"
)

// Config is the persistent application configuration
type Config struct {
	API  APIConfig  `json:"api"`
	Feed FeedConfig `json:"feed"`
	UI   UIConfig   `json:"ui"`

	// DatabasePath is the SQLite file for preferences and upload history.
	// Empty means ~/.soundprints/soundprints.db.
	DatabasePath string `json:"database_path,omitempty"`
}

// APIConfig holds remote service settings
type APIConfig struct {
	BaseURL           string  `json:"base_url"`
	Token             string  `json:"token,omitempty"`
	Provider          string  `json:"provider"` // auth provider sent with every request
	RequestsPerSecond float64 `json:"requests_per_second"`
	TimeoutSec        int     `json:"timeout_sec"`
	MaxRetries        int     `json:"max_retries"`
}

// FeedConfig tunes the feed model
type FeedConfig struct {
	Mode                    string  `json:"mode"` // "location" or "time"
	RefreshIntervalSec      int     `json:"refresh_interval_sec"`
	InvalidationIntervalSec int     `json:"invalidation_interval_sec"`
	DistanceThresholdM      float64 `json:"distance_threshold_m"`
	LocationPageSize        int     `json:"location_page_size"`
	TimePageSize            int     `json:"time_page_size"`
	MaxRadiusM              float64 `json:"max_radius_m"`
	FetchTimeoutSec         int     `json:"fetch_timeout_sec"`
}

// UIConfig holds UI preferences
type UIConfig struct {
	ViewportThrottleMs int     `json:"viewport_throttle_ms"` // pan coalescing delay
	MaxBurst           int     `json:"max_burst"`            // force a report every n pans
	PanStepM           float64 `json:"pan_step_m"`
	PrefetchThreshold  int     `json:"prefetch_threshold"` // rows from the end that trigger the next page
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:           "https://api.soundprints.app/v1/",
			Provider:          "facebook",
			RequestsPerSecond: 5,
			TimeoutSec:        30,
			MaxRetries:        2,
		},
		Feed: FeedConfig{
			Mode:                    "location",
			RefreshIntervalSec:      5,
			InvalidationIntervalSec: 60,
			DistanceThresholdM:      100,
			LocationPageSize:        20,
			TimePageSize:            50,
			MaxRadiusM:              10000,
			FetchTimeoutSec:         30,
		},
		UI: UIConfig{
			ViewportThrottleMs: 500,
			MaxBurst:           10,
			PanStepM:           50,
			PrefetchThreshold:  5,
		},
	}
}

// Dir returns ~/.soundprints
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".soundprints")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(Dir(), "config.json")
}

// EventLogPath returns the JSONL event log written by the TUI.
func EventLogPath() string {
	return filepath.Join(Dir(), "soundprints.events.jsonl")
}

// Load reads config from disk, or returns defaults
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads config from path. A missing file yields defaults filled
// from the environment; an unparseable one yields plain defaults.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			cfg.AutoPopulateFromEnv()
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return DefaultConfig(), nil
	}
	cfg.AutoPopulateFromEnv()
	return cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes config to path
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600) // holds the API token
}

// AutoPopulateFromEnv overrides API settings from environment variables
func (c *Config) AutoPopulateFromEnv() {
	if v := os.Getenv("SOUNDPRINTS_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("SOUNDPRINTS_TOKEN"); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv("SOUNDPRINTS_PROVIDER"); v != "" {
		c.API.Provider = v
	}
}

// LoadKeysFromFile reads export KEY=value lines (like keys.sh)
func (c *Config) LoadKeysFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"'`)

		switch key {
		case "SOUNDPRINTS_TOKEN":
			c.API.Token = value
		case "SOUNDPRINTS_API_URL":
			c.API.BaseURL = value
		case "SOUNDPRINTS_PROVIDER":
			c.API.Provider = value
		}
	}
	return nil
}

// DBPath returns the database path, defaulting under Dir.
func (c *Config) DBPath() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	return filepath.Join(Dir(), "soundprints.db")
}

// FeedOptions converts the feed settings into model options.
func (c *Config) FeedOptions() (feed.Options, error) {
	mode, err := feed.ParseMode(c.Feed.Mode)
	if err != nil {
		return feed.Options{}, err
	}
	return feed.Options{
		Mode:                 mode,
		RefreshInterval:      seconds(c.Feed.RefreshIntervalSec),
		InvalidationInterval: seconds(c.Feed.InvalidationIntervalSec),
		DistanceThreshold:    c.Feed.DistanceThresholdM,
		LocationPageSize:     c.Feed.LocationPageSize,
		TimePageSize:         c.Feed.TimePageSize,
		MaxRadius:            c.Feed.MaxRadiusM,
		FetchTimeout:         seconds(c.Feed.FetchTimeoutSec),
	}, nil
}

// RemoteOptions converts the API settings into client options.
func (c *Config) RemoteOptions() remote.Options {
	return remote.Options{
		BaseURL:           c.API.BaseURL,
		Provider:          c.API.Provider,
		RequestsPerSecond: c.API.RequestsPerSecond,
		Timeout:           seconds(c.API.TimeoutSec),
		MaxRetries:        c.API.MaxRetries,
	}
}

// ViewportThrottle returns the pan coalescing delay.
func (c *Config) ViewportThrottle() time.Duration {
	return time.Duration(c.UI.ViewportThrottleMs) * time.Millisecond
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

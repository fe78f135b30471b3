package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abelbrown/soundprints/internal/feed"
)

func clearEnv(t *testing.T) {
	t.Setenv("SOUNDPRINTS_API_URL", "")
	t.Setenv("SOUNDPRINTS_TOKEN", "")
	t.Setenv("SOUNDPRINTS_PROVIDER", "")
}

func TestLoadMissingReturnsDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("SOUNDPRINTS_TOKEN", "env-token")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Feed.Mode != "location" || cfg.UI.ViewportThrottleMs != 500 || cfg.UI.MaxBurst != 10 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.API.Token != "env-token" {
		t.Errorf("token = %q, want env-token", cfg.API.Token)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.API.Token = "secret"
	cfg.Feed.Mode = "time"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("perm = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if loaded.API.Token != "secret" || loaded.Feed.Mode != "time" {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"feed":{"mode":"time"}}`), 0600)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Feed.Mode != "time" || cfg.Feed.TimePageSize != 50 || cfg.API.Provider != "facebook" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestCorruptFileFallsBack(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{not json`), 0600)

	cfg, err := LoadFrom(path)
	if err != nil || cfg.Feed.Mode != "location" {
		t.Errorf("cfg = %+v, err = %v", cfg, err)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("SOUNDPRINTS_API_URL", "http://localhost:8080/")
	t.Setenv("SOUNDPRINTS_PROVIDER", "google")

	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"api":{"base_url":"https://file/"}}`), 0600)

	cfg, _ := LoadFrom(path)
	if cfg.API.BaseURL != "http://localhost:8080/" || cfg.API.Provider != "google" {
		t.Errorf("api = %+v", cfg.API)
	}
}

func TestLoadKeysFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.sh")
	os.WriteFile(path, []byte("#!/bin/sh\nexport SOUNDPRINTS_TOKEN=\"abc\"\nSOUNDPRINTS_PROVIDER=google\nOTHER=1\n"), 0600)

	cfg := DefaultConfig()
	if err := cfg.LoadKeysFromFile(path); err != nil {
		t.Fatal(err)
	}
	if cfg.API.Token != "abc" || cfg.API.Provider != "google" {
		t.Errorf("api = %+v", cfg.API)
	}
}

func TestFeedOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Feed.Mode = "time"

	opts, err := cfg.FeedOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Mode != feed.ModeTime || opts.RefreshInterval != 5*time.Second ||
		opts.InvalidationInterval != time.Minute || opts.MaxRadius != 10000 || opts.TimePageSize != 50 {
		t.Errorf("opts = %+v", opts)
	}

	cfg.Feed.Mode = "sideways"
	if _, err := cfg.FeedOptions(); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestDBPath(t *testing.T) {
	cfg := DefaultConfig()
	if filepath.Base(cfg.DBPath()) != "soundprints.db" {
		t.Errorf("DBPath = %s", cfg.DBPath())
	}
	cfg.DatabasePath = ":memory:"
	if cfg.DBPath() != ":memory:" {
		t.Errorf("DBPath = %s", cfg.DBPath())
	}
}

func TestRemoteOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.BaseURL = "http://localhost:8080/api/"
	cfg.API.TimeoutSec = 7

	opts := cfg.RemoteOptions()
	if opts.BaseURL != "http://localhost:8080/api/" || opts.Provider != "facebook" {
		t.Errorf("opts = %+v", opts)
	}
	if opts.Timeout != 7*time.Second || opts.MaxRetries != 2 || opts.RequestsPerSecond != 5 {
		t.Errorf("opts = %+v", opts)
	}
}

func TestEventLogPath(t *testing.T) {
	if filepath.Dir(EventLogPath()) != Dir() {
		t.Errorf("EventLogPath = %s, want under %s", EventLogPath(), Dir())
	}
}

package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/abelbrown/soundprints/internal/config"
	"github.com/abelbrown/soundprints/internal/remote"
	"github.com/abelbrown/soundprints/internal/store"
)

// loadConfig reads the config or fatals.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// openDB opens the store or fatals.
func openDB(cfg *config.Config) *store.Store {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath()), 0755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}
	st, err := store.Open(cfg.DBPath())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	return st
}

// newClient builds an API client, requiring a token.
func newClient(cfg *config.Config) *remote.Client {
	token := strings.TrimSpace(cfg.API.Token)
	if token == "" {
		fmt.Fprintln(os.Stderr, "error: SOUNDPRINTS_TOKEN environment variable is required")
		fmt.Fprintln(os.Stderr, "  export SOUNDPRINTS_TOKEN=... or set api.token in", config.ConfigPath())
		os.Exit(1)
	}
	client, err := remote.New(remote.StaticToken(token), cfg.RemoteOptions())
	if err != nil {
		log.Fatalf("failed to create client: %v", err)
	}
	return client
}

// truncate shortens a string to max runes, appending "..." if truncated.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHelpersAreSafeBeforeInit(t *testing.T) {
	Logger = nil
	Info("info", "k", 1)
	Debug("debug")
	Warn("warn")
	Error("error", "err", "x")
	if WithPrefix("feed") != nil {
		t.Error("WithPrefix should return nil before Init")
	}
}

func TestInitWritesDatedFile(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	Info("Feed invalidated", "generation", 3)
	Close()
	Logger = nil

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 log file, got %d", len(entries))
	}
	name := entries[0].Name()
	if !strings.HasPrefix(name, "soundprints-") || !strings.HasSuffix(name, ".log") {
		t.Errorf("unexpected log file name %q", name)
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	for _, want := range []string{"Soundprints started", "Feed invalidated", "generation=3", "shutting down"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log missing %q:\n%s", want, data)
		}
	}
}

package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}

	if config.Server.ListenAddr != "localhost:8765" {
		t.Errorf("listen addr = %q", config.Server.ListenAddr)
	}
	if config.Server.Path != "/telemetry" {
		t.Errorf("path = %q", config.Server.Path)
	}
	if config.Simulator.UpdateInterval() != 100*time.Millisecond {
		t.Errorf("update interval = %v, want 100ms", config.Simulator.UpdateInterval())
	}
	if config.Simulator.Seed != 0 {
		t.Errorf("seed = %d, want 0 (clock-seeded)", config.Simulator.Seed)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
settings:
  logLevel: debug
server:
  listenAddr: 0.0.0.0:9765
simulator:
  updateIntervalMs: 50
  seed: 42
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if config.Server.ListenAddr != "0.0.0.0:9765" {
		t.Errorf("listen addr = %q", config.Server.ListenAddr)
	}
	if config.Server.Path != "/telemetry" {
		t.Errorf("path = %q, want default", config.Server.Path)
	}
	if config.Simulator.UpdateInterval() != 50*time.Millisecond {
		t.Errorf("update interval = %v, want 50ms", config.Simulator.UpdateInterval())
	}
	if config.Simulator.Seed != 42 {
		t.Errorf("seed = %d, want 42", config.Simulator.Seed)
	}
}

func TestLoadConfig_RejectsBadInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("simulator:\n  updateIntervalMs: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("zero update interval was accepted")
	}
}

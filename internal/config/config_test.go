package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model != DefaultModel {
		t.Fatalf("model = %q", cfg.Model)
	}
	if cfg.MaxTurns != DefaultMaxTurns {
		t.Fatalf("max turns = %d", cfg.MaxTurns)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Fatalf("listen addr = %q", cfg.ListenAddr)
	}
}

func TestLoadOverridesAndBackfills(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atelier.yaml")
	data := "model: custom-model\nmax_turns: 5\nprovider: mock\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model != "custom-model" {
		t.Fatalf("model = %q", cfg.Model)
	}
	if cfg.MaxTurns != 5 {
		t.Fatalf("max turns = %d", cfg.MaxTurns)
	}
	if cfg.Provider != "mock" {
		t.Fatalf("provider = %q", cfg.Provider)
	}
	// Unset fields still get their defaults.
	if cfg.TitleModel != DefaultTitleModel {
		t.Fatalf("title model = %q", cfg.TitleModel)
	}
	if cfg.DatabasePath != DefaultDatabase {
		t.Fatalf("database = %q", cfg.DatabasePath)
	}
}

func TestLoadKeepsExplicitZeroTemperature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atelier.yaml")
	if err := os.WriteFile(path, []byte("temperature: 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Temperature == nil || *cfg.Temperature != 0 {
		t.Fatalf("temperature = %v, explicit zero must survive defaults", cfg.Temperature)
	}

	// And with the field absent, the default is backfilled.
	cfg, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Temperature == nil || *cfg.Temperature != DefaultTemperature {
		t.Fatalf("temperature = %v, want default %v", cfg.Temperature, DefaultTemperature)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("model: [unclosed"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

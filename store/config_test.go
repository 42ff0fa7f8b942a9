package store_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tailored-agentic-units/flux/store"
)

func TestDefaultConfig(t *testing.T) {
	cfg := store.DefaultConfig()

	if cfg.Name != "store" {
		t.Errorf("got Name %q, want %q", cfg.Name, "store")
	}
	if cfg.Observer != "slog" {
		t.Errorf("got Observer %q, want %q", cfg.Observer, "slog")
	}
	if cfg.Tracer != store.DefaultTracer {
		t.Errorf("got Tracer %q", cfg.Tracer)
	}
	if cfg.Persist.Enabled() || cfg.FlushOnDispatch {
		t.Error("persistence should be off by default")
	}
}

func TestConfig_Merge(t *testing.T) {
	cfg := store.DefaultConfig()

	source := &store.Config{
		Name:            "app",
		Observer:        "trace",
		FlushOnDispatch: true,
	}
	source.Persist.Path = "/tmp/flux"

	cfg.Merge(source)

	if cfg.Name != "app" || cfg.Observer != "trace" {
		t.Errorf("got Name %q Observer %q", cfg.Name, cfg.Observer)
	}
	if !cfg.FlushOnDispatch {
		t.Error("FlushOnDispatch was not merged")
	}
	if cfg.Persist.Path != "/tmp/flux" || cfg.Persist.Codec != "json" {
		t.Errorf("got Persist %+v", cfg.Persist)
	}
}

func TestConfig_Merge_ZeroValuesPreserveDefaults(t *testing.T) {
	cfg := store.DefaultConfig()
	cfg.Merge(&store.Config{})

	if cfg != store.DefaultConfig() {
		t.Errorf("got %+v, want defaults preserved", cfg)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")

	content := `{
		"name": "counter",
		"observer": "noop",
		"flush_on_dispatch": true,
		"persist": {
			"path": "/tmp/counter",
			"codec": "protojson"
		}
	}`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := store.LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Name != "counter" || cfg.Observer != "noop" || !cfg.FlushOnDispatch {
		t.Errorf("got %+v", cfg)
	}
	if cfg.Persist.Path != "/tmp/counter" || cfg.Persist.Codec != "protojson" {
		t.Errorf("got Persist %+v", cfg.Persist)
	}
	if cfg.Persist.Prefix != "states/" {
		t.Errorf("got Prefix %q, want default preserved", cfg.Persist.Prefix)
	}
	if cfg.Tracer != store.DefaultTracer {
		t.Errorf("got Tracer %q, want default preserved", cfg.Tracer)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := store.LoadConfig(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := store.LoadConfig(bad); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailored-agentic-units/flux/persist"
)

// DefaultTracer is the instrumentation name used for dispatch spans.
const DefaultTracer = "github.com/tailored-agentic-units/flux/store"

// Config is read once by NewBuilder. Collaborators are named here and
// resolved through their registries at Build; Options override them.
//
// Example JSON:
//
//	{
//	  "name": "app",
//	  "observer": "slog",
//	  "flush_on_dispatch": true,
//	  "persist": {"path": "./data", "codec": "json"}
//	}
type Config struct {
	Name            string         `json:"name"`
	Observer        string         `json:"observer,omitempty"`
	Tracer          string         `json:"tracer,omitempty"`
	Persist         persist.Config `json:"persist"`
	FlushOnDispatch bool           `json:"flush_on_dispatch,omitempty"`
}

// DefaultConfig returns a store logging through slog with persistence
// disabled.
func DefaultConfig() Config {
	return Config{
		Name:     "store",
		Observer: "slog",
		Tracer:   DefaultTracer,
		Persist:  persist.DefaultConfig(),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Name != "" {
		c.Name = source.Name
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
	if source.Tracer != "" {
		c.Tracer = source.Tracer
	}
	if source.FlushOnDispatch {
		c.FlushOnDispatch = true
	}
	c.Persist.Merge(&source.Persist)
}

// LoadConfig reads a JSON file and merges it over DefaultConfig.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}

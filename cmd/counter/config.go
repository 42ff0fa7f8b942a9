package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tailored-agentic-units/flux/operation"
	"github.com/tailored-agentic-units/flux/store"
)

// config is the counter's JSON config file:
//
//	{
//	  "store": {"name": "counter", "flush_on_dispatch": true, "persist": {"path": "./state"}},
//	  "operation": {"max_failures": 10},
//	  "load_delay": "250ms"
//	}
type config struct {
	Store     store.Config     `json:"store"`
	Operation operation.Config `json:"operation"`
	LoadDelay duration         `json:"load_delay"`
}

// duration reads a time.Duration from a JSON string such as "250ms".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func defaultConfig() *config {
	cfg := &config{
		Store:     store.DefaultConfig(),
		Operation: operation.DefaultConfig(),
		LoadDelay: duration{500 * time.Millisecond},
	}
	cfg.Store.Name = "counter"
	cfg.Store.FlushOnDispatch = true
	return cfg
}

func loadConfig(filename string) (*config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Store.Merge(&loaded.Store)
	cfg.Operation.Merge(&loaded.Operation)
	if loaded.LoadDelay.Duration > 0 {
		cfg.LoadDelay = loaded.LoadDelay
	}
	return cfg, nil
}

package operation

// Config holds the settings shared by the operations of one store.
type Config struct {
	MaxFailures int `json:"max_failures,omitempty"`
}

// DefaultConfig keeps the 50 most recent failures.
func DefaultConfig() Config {
	return Config{
		MaxFailures: 50,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.MaxFailures > 0 {
		c.MaxFailures = source.MaxFailures
	}
}

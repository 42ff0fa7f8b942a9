package persist

// MemoryPath selects the in-process store instead of a directory.
const MemoryPath = ":memory:"

// Config selects the backend for persisted slices.
type Config struct {
	Path   string `json:"path,omitempty"`   // FileStore root, MemoryPath, or empty to disable.
	Codec  string `json:"codec,omitempty"`  // Registered codec name.
	Prefix string `json:"prefix,omitempty"` // Key prefix for slice entries.
}

// DefaultConfig returns a disabled configuration with JSON encoding under
// the "states/" prefix.
func DefaultConfig() Config {
	return Config{
		Codec:  "json",
		Prefix: "states/",
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Path != "" {
		c.Path = source.Path
	}
	if source.Codec != "" {
		c.Codec = source.Codec
	}
	if source.Prefix != "" {
		c.Prefix = source.Prefix
	}
}

// Enabled reports whether a backend is configured.
func (c *Config) Enabled() bool {
	return c.Path != ""
}

// NewStore builds the configured Store. It returns a nil Store when
// persistence is disabled.
func NewStore(cfg *Config) (Store, error) {
	switch cfg.Path {
	case "":
		return nil, nil
	case MemoryPath:
		return NewMemoryStore(), nil
	default:
		return NewFileStore(cfg.Path), nil
	}
}

// Key is the store key for the slice called name.
func (c *Config) Key(name string) string {
	return c.Prefix + name
}

package datastore

import (
	"fmt"
	"sort"
	"sync"
)

// Config represents the configuration for a datastore.
type Config struct {
	Type       string                 `yaml:"type" json:"type"`
	Connection string                 `yaml:"connection" json:"connection"`
	Options    map[string]interface{} `yaml:"options" json:"options"`
}

// Engine type constants.
const (
	TypeBolt   = "bolt"
	TypeBadger = "badger"
	TypeMemory = "memory"
)

// DefaultConfig returns the default configuration for an engine type.
func DefaultConfig(engineType string) Config {
	switch engineType {
	case TypeBolt:
		return Config{
			Type:       TypeBolt,
			Connection: "./workspace.qleany",
		}
	case TypeBadger:
		return Config{
			Type:       TypeBadger,
			Connection: "./workspace.qleany.d",
			Options: map[string]interface{}{
				"sync_writes": true,
			},
		}
	case TypeMemory:
		return Config{Type: TypeMemory}
	default:
		return Config{Type: engineType}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("datastore type is required")
	}
	switch c.Type {
	case TypeMemory:
		// Memory doesn't need a connection string.
	case TypeBolt, TypeBadger:
		if c.Connection == "" {
			return fmt.Errorf("%s requires a file path", c.Type)
		}
	default:
		// Custom engines handle their own validation.
	}
	return nil
}

// GetBoolOption retrieves a boolean option.
func (c *Config) GetBoolOption(key string, defaultValue bool) bool {
	if c.Options == nil {
		return defaultValue
	}
	if v, ok := c.Options[key].(bool); ok {
		return v
	}
	return defaultValue
}

// GetIntOption retrieves an integer option.
func (c *Config) GetIntOption(key string, defaultValue int) int {
	if c.Options == nil {
		return defaultValue
	}
	switch v := c.Options[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return defaultValue
	}
}

// Factory creates an uninitialized datastore from a configuration.
type Factory func(config Config) (DataStore, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes an engine available under a type identifier. Adapters call
// it from their init functions.
func Register(engineType string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[engineType] = factory
}

// New builds and initializes a datastore for the configured engine type.
func New(config Config) (DataStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	registryMu.RLock()
	factory, ok := registry[config.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown datastore type %q (registered: %v)", config.Type, registeredTypes())
	}

	store, err := factory(config)
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(config); err != nil {
		return nil, err
	}
	return store, nil
}

// registeredTypes lists the registered engine types in sorted order.
func registeredTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

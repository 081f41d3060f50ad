// Package config loads the application configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jacquetc/qleany/datastore"
)

// Config is the complete application configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Generator GeneratorConfig `yaml:"generator"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig selects the embedded KV engine holding the workspace.
type DatabaseConfig struct {
	Engine string `yaml:"engine"` // memory, bolt, badger
	Path   string `yaml:"path"`
}

// GeneratorConfig tunes the file generation pipeline.
type GeneratorConfig struct {
	OutputRoot   string `yaml:"output_root"`
	OnlyExisting bool   `yaml:"only_existing"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Engine: datastore.TypeBolt,
			Path:   ".qleany/workspace.db",
		},
		Generator: GeneratorConfig{
			OutputRoot: ".",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig reads the YAML file, applies environment overrides and
// validates the result. A missing file is not an error; defaults apply.
func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()

	if configFile != "" {
		if err := loadFromFile(config, configFile); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load config file %s: %w", configFile, err)
			}
		}
	}

	loadFromEnv(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func loadFromFile(config *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	expanded := os.ExpandEnv(string(data))
	return yaml.Unmarshal([]byte(expanded), config)
}

func loadFromEnv(config *Config) {
	if engine := os.Getenv("QLEANY_DB_ENGINE"); engine != "" {
		config.Database.Engine = strings.ToLower(engine)
	}
	if path := os.Getenv("QLEANY_DB_PATH"); path != "" {
		config.Database.Path = path
	}
	if root := os.Getenv("QLEANY_OUTPUT_ROOT"); root != "" {
		config.Generator.OutputRoot = root
	}
	if level := os.Getenv("QLEANY_LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}
	if format := os.Getenv("QLEANY_LOG_FORMAT"); format != "" {
		config.Logging.Format = strings.ToLower(format)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Database.Engine {
	case datastore.TypeMemory, datastore.TypeBolt, datastore.TypeBadger:
	default:
		return fmt.Errorf("invalid database engine: %s", c.Database.Engine)
	}
	if c.Database.Engine != datastore.TypeMemory && c.Database.Path == "" {
		return fmt.Errorf("database path is required for engine %s", c.Database.Engine)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	validFormats := map[string]bool{
		"json": true, "console": true,
	}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	return nil
}

// DatastoreConfig translates the database section into a datastore config.
func (c *Config) DatastoreConfig() datastore.Config {
	cfg := datastore.DefaultConfig(c.Database.Engine)
	if c.Database.Path != "" {
		cfg.Connection = c.Database.Path
	}
	return cfg
}

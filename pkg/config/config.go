package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/simfs/pkg/adapter/console"
	"github.com/spf13/viper"
)

// Config represents the complete simfs configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (SIMFS_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server"`

	// Namespace shapes the tree created at startup
	Namespace NamespaceConfig `mapstructure:"namespace"`

	// Sessions controls user sessions
	Sessions SessionsConfig `mapstructure:"sessions"`

	// Journal configures the command audit log
	Journal JournalConfig `mapstructure:"journal"`

	// Adapters contains protocol adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig configures the metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	Port int `mapstructure:"port" validate:"min=0,max=65535"`
}

// NamespaceConfig shapes the tree created at startup.
type NamespaceConfig struct {
	// RootName names the root item shown by PRINT Root
	RootName string `mapstructure:"root_name" validate:"required"`

	// Volumes lists the volumes to create, e.g. ["C:", "D:"]. C: always
	// exists.
	Volumes []string `mapstructure:"volumes"`

	// CaseSensitiveCommands makes verbs match only in upper case
	CaseSensitiveCommands bool `mapstructure:"case_sensitive_commands"`
}

// SessionsConfig controls user sessions.
type SessionsConfig struct {
	// Timeout is the inactivity period after which a session expires
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// JournalConfig configures the command audit log.
type JournalConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// InMemory keeps the journal in memory only
	InMemory bool `mapstructure:"in_memory"`

	// Path is the badger directory, required unless InMemory
	Path string `mapstructure:"path"`

	// MaxEntries caps the journal; older entries are evicted
	MaxEntries int `mapstructure:"max_entries" validate:"min=0"`
}

// AdaptersConfig contains all protocol adapter configurations.
type AdaptersConfig struct {
	// Console uses the console.Config type directly to avoid duplication.
	Console console.Config `mapstructure:"console"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SIMFS_*)
//  2. Configuration file
//  3. Default values
//
// An empty configPath searches the default location. A missing file is not
// an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: SIMFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("SIMFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Environment overrides only reach keys viper knows about, so register
	// every key with its default.
	registerDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		// An explicit path that does not exist surfaces as a PathError.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns $XDG_CONFIG_HOME/simfs, ~/.config/simfs, or "." if
// the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "simfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "simfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/marmos91/simfs/pkg/adapter/console"
	"github.com/marmos91/simfs/pkg/session"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults; explicit values are preserved.
// Boolean switches cannot be told apart from an explicit false here, so Load
// registers their defaults with viper instead.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyNamespaceDefaults(&cfg.Namespace)
	applySessionDefaults(&cfg.Sessions)
	applyJournalDefaults(&cfg.Journal)
	applyConsoleDefaults(&cfg.Adapters.Console)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

func applyNamespaceDefaults(cfg *NamespaceConfig) {
	if cfg.RootName == "" {
		cfg.RootName = "MyFS"
	}
	if len(cfg.Volumes) == 0 {
		cfg.Volumes = []string{"C:"}
	}
}

func applySessionDefaults(cfg *SessionsConfig) {
	if cfg.Timeout == 0 {
		cfg.Timeout = session.DefaultTimeout
	}
}

func applyJournalDefaults(cfg *JournalConfig) {
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = 1000
	}
}

// applyConsoleDefaults mirrors the defaults console.New applies so the
// effective values show up in generated files and logs.
func applyConsoleDefaults(cfg *console.Config) {
	if cfg.Port == 0 {
		cfg.Port = 7070
	}

	// MaxConnections defaults to 0 (unlimited)

	if cfg.Timeouts.Read == 0 {
		cfg.Timeouts.Read = 5 * time.Minute
	}
	if cfg.Timeouts.Write == 0 {
		cfg.Timeouts.Write = 30 * time.Second
	}
	if cfg.Timeouts.Idle == 0 {
		cfg.Timeouts.Idle = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.MetricsLogInterval == 0 {
		cfg.MetricsLogInterval = 5 * time.Minute
	}
	if cfg.NotificationBuffer == 0 {
		cfg.NotificationBuffer = 64
	}
}

// GetDefaultConfig returns a Config with all default values applied.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Journal: JournalConfig{
			Enabled:  true,
			InMemory: true,
		},
		Adapters: AdaptersConfig{
			Console: console.Config{
				Enabled: true,
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}

// toMap converts cfg into nested maps keyed by mapstructure tags.
func toMap(cfg *Config) (map[string]any, error) {
	out := make(map[string]any)
	if err := mapstructure.Decode(cfg, &out); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return out, nil
}

// registerDefaults registers every key of the default configuration with v.
func registerDefaults(v *viper.Viper) {
	defaults, err := toMap(GetDefaultConfig())
	if err != nil {
		// The default config is static; failing to encode it is a programming error.
		panic(err)
	}
	setDefaults(v, "", defaults)
}

func setDefaults(v *viper.Viper, prefix string, values map[string]any) {
	for key, value := range values {
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			setDefaults(v, key, nested)
			continue
		}
		v.SetDefault(key, value)
	}
}

package e2e

import (
	"fmt"
	"path/filepath"

	"github.com/marmos91/simfs/pkg/config"
)

// JournalType represents how the command journal is stored during a run.
type JournalType string

const (
	JournalNone   JournalType = "none"
	JournalMemory JournalType = "memory"
	JournalBadger JournalType = "badger"
)

// TestContextProvider is an interface for providing test context dependencies
type TestContextProvider interface {
	CreateTempDir(prefix string) string
	GetConfig() *TestConfig
}

// TestConfig holds the configuration for a test run
type TestConfig struct {
	Name     string
	Journal  JournalType
	RootName string
	Volumes  []string
}

// String returns a string representation of the configuration
func (tc *TestConfig) String() string {
	return fmt.Sprintf("%s/journal=%s", tc.RootName, tc.Journal)
}

// HasJournal reports whether commands are journaled in this configuration.
func (tc *TestConfig) HasJournal() bool {
	return tc.Journal != JournalNone
}

// ServerConfig builds the full server configuration for this run. The console
// adapter binds an ephemeral port and metrics stay off, since the metrics
// registry can only be initialized once per process.
func (tc *TestConfig) ServerConfig(testCtx TestContextProvider) *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = "ERROR"
	cfg.Server.Metrics.Enabled = false
	cfg.Adapters.Console.Port = 0

	if tc.RootName != "" {
		cfg.Namespace.RootName = tc.RootName
	}
	if len(tc.Volumes) > 0 {
		cfg.Namespace.Volumes = tc.Volumes
	}

	switch tc.Journal {
	case JournalNone:
		cfg.Journal.Enabled = false
	case JournalMemory:
		cfg.Journal.Enabled = true
		cfg.Journal.InMemory = true
	case JournalBadger:
		cfg.Journal.Enabled = true
		cfg.Journal.InMemory = false
		cfg.Journal.Path = filepath.Join(testCtx.CreateTempDir("simfs-journal-*"), "journal")
	}

	return cfg
}

// AllConfigurations returns the configurations every scenario runs against.
func AllConfigurations() []*TestConfig {
	return []*TestConfig{
		{
			Name:     "no-journal",
			Journal:  JournalNone,
			RootName: "MyFS",
		},
		{
			Name:     "memory-journal",
			Journal:  JournalMemory,
			RootName: "MyFS",
		},
		{
			Name:     "badger-journal",
			Journal:  JournalBadger,
			RootName: "MyFS",
		},
	}
}

// GetConfigByName returns a specific configuration by name
func GetConfigByName(name string) *TestConfig {
	for _, config := range AllConfigurations() {
		if config.Name == name {
			return config
		}
	}
	return nil
}

package config

import (
	"fmt"

	"github.com/marmos91/simfs/pkg/adapter"
	"github.com/marmos91/simfs/pkg/adapter/console"
	"github.com/marmos91/simfs/pkg/metrics"
)

// CreateAdapters creates all enabled protocol adapters from the
// configuration. consoleMetrics may be nil.
func CreateAdapters(cfg *Config, consoleMetrics metrics.ConsoleMetrics) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	if cfg.Adapters.Console.Enabled {
		adapters = append(adapters, console.New(cfg.Adapters.Console, consoleMetrics))
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}

	return adapters, nil
}

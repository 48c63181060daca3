package config

import (
	"context"
	"fmt"

	"github.com/marmos91/simfs/internal/logger"
	"github.com/marmos91/simfs/pkg/journal"
	"github.com/marmos91/simfs/pkg/metrics"
	"github.com/marmos91/simfs/pkg/service"
)

// CreateJournal opens the command journal described by cfg. It returns nil
// without error when the journal is disabled.
func CreateJournal(ctx context.Context, cfg *JournalConfig) (*journal.Journal, error) {
	if !cfg.Enabled {
		logger.Info("Command journal disabled")
		return nil, nil
	}

	j, err := journal.Open(ctx, journal.Config{
		InMemory:   cfg.InMemory,
		Path:       cfg.Path,
		MaxEntries: cfg.MaxEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if cfg.InMemory {
		logger.Info("Command journal enabled (in memory, max %d entries)", cfg.MaxEntries)
	} else {
		logger.Info("Command journal enabled at %s (max %d entries)", cfg.Path, cfg.MaxEntries)
	}
	return j, nil
}

// CreateService builds the namespace service from cfg. j and serviceMetrics
// may be nil.
func CreateService(cfg *Config, j *journal.Journal, serviceMetrics metrics.ServiceMetrics) (*service.Service, error) {
	var opts []service.Option
	if j != nil {
		opts = append(opts, service.WithJournal(j))
	}
	if serviceMetrics != nil {
		opts = append(opts, service.WithMetrics(serviceMetrics))
	}

	svc, err := service.New(service.Config{
		RootName:              cfg.Namespace.RootName,
		Volumes:               cfg.Namespace.Volumes,
		CaseSensitiveCommands: cfg.Namespace.CaseSensitiveCommands,
		SessionTimeout:        cfg.Sessions.Timeout,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return svc, nil
}

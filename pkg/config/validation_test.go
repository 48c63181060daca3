package config

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "bad log level",
			mutate:  func(cfg *Config) { cfg.Logging.Level = "LOUD" },
			wantErr: "Level",
		},
		{
			name:    "root name with invalid characters",
			mutate:  func(cfg *Config) { cfg.Namespace.RootName = "My|FS" },
			wantErr: "root_name",
		},
		{
			name:    "volume outside C-Z",
			mutate:  func(cfg *Config) { cfg.Namespace.Volumes = []string{"A:"} },
			wantErr: "volumes[0]",
		},
		{
			name:    "duplicate volume",
			mutate:  func(cfg *Config) { cfg.Namespace.Volumes = []string{"C:", "c:"} },
			wantErr: "duplicate volume",
		},
		{
			name: "persistent journal without path",
			mutate: func(cfg *Config) {
				cfg.Journal.InMemory = false
				cfg.Journal.Path = ""
			},
			wantErr: "journal",
		},
		{
			name: "disabled journal needs no path",
			mutate: func(cfg *Config) {
				cfg.Journal.Enabled = false
				cfg.Journal.InMemory = false
			},
		},
		{
			name:    "no adapter",
			mutate:  func(cfg *Config) { cfg.Adapters.Console.Enabled = false },
			wantErr: "at least one adapter",
		},
		{
			name: "metrics port clash",
			mutate: func(cfg *Config) {
				cfg.Server.Metrics.Enabled = true
				cfg.Server.Metrics.Port = cfg.Adapters.Console.Port
			},
			wantErr: "conflicts",
		},
		{
			name:    "port out of range",
			mutate:  func(cfg *Config) { cfg.Adapters.Console.Port = 70000 },
			wantErr: "Port",
		},
		{
			name:    "negative session timeout",
			mutate:  func(cfg *Config) { cfg.Sessions.Timeout = -1 },
			wantErr: "Timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected valid config, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

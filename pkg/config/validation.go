package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/simfs/pkg/namespace"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Log level normalization is handled in ApplyDefaults, not here. Validation
// accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if err := namespace.ValidateName(cfg.Namespace.RootName); err != nil {
		return fmt.Errorf("namespace.root_name: %w", err)
	}

	seen := make(map[string]bool)
	for i, volume := range cfg.Namespace.Volumes {
		if err := namespace.ValidateVolumeName(volume); err != nil {
			return fmt.Errorf("namespace.volumes[%d]: %w", i, err)
		}
		key := namespace.Normalize(volume)
		if seen[key] {
			return fmt.Errorf("namespace.volumes[%d]: duplicate volume %q", i, volume)
		}
		seen[key] = true
	}

	if cfg.Journal.Enabled && !cfg.Journal.InMemory && cfg.Journal.Path == "" {
		return fmt.Errorf("journal: path is required unless in_memory is true")
	}

	if !cfg.Adapters.Console.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}

	if cfg.Server.Metrics.Enabled && cfg.Server.Metrics.Port == cfg.Adapters.Console.Port {
		return fmt.Errorf("server.metrics.port %d conflicts with adapters.console.port", cfg.Server.Metrics.Port)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}

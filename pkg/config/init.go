package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

const sampleHeader = `# simfs Configuration File
#
# Every key can be overridden with an environment variable:
#   SIMFS_<SECTION>_<KEY>, e.g. SIMFS_LOGGING_LEVEL=DEBUG
#                                SIMFS_ADAPTERS_CONSOLE_PORT=7171
#
# Durations use Go syntax (30s, 5m, 1h).

`

// InitConfig writes a sample configuration file to the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration file to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	data, err := SampleConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SampleConfig renders the default configuration as commented YAML.
func SampleConfig() ([]byte, error) {
	values, err := toMap(GetDefaultConfig())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(sampleHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(values); err != nil {
		return nil, fmt.Errorf("failed to encode sample config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode sample config: %w", err)
	}

	return buf.Bytes(), nil
}

// Settings flattens cfg into sorted dotted-key/value pairs, e.g.
// {"adapters.console.port", "7070"}.
func Settings(cfg *Config) ([][2]string, error) {
	values, err := toMap(cfg)
	if err != nil {
		return nil, err
	}

	var pairs [][2]string
	flatten("", values, &pairs)
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })
	return pairs, nil
}

func flatten(prefix string, values map[string]any, pairs *[][2]string) {
	for key, value := range values {
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flatten(key, nested, pairs)
			continue
		}
		*pairs = append(*pairs, [2]string{key, fmt.Sprint(value)})
	}
}

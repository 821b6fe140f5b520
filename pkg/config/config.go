// Package config loads, saves and resolves the relay's config.toml, layering
// environment variables and CLI flags on top of it through viper.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/streamrelay/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

// orderedKeys lists config keys in TOML section order for display.
var orderedKeys = []string{
	"upstream.endpoint",
	"upstream.model",
	"upstream.api_key_env",
	"upstream.idle_timeout",
	"server.listen",
	"client.relay_target",
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"eventstream.kafka_brokers",
	"eventstream.kafka_topic",
	"worker.num_workers",
	"worker.queue_size",
}

// Configer reads and writes one config.toml.
type Configer struct {
	targetPath string
}

// NewConfiger resolves config.toml inside the .relay/ directory picked by
// dotdir, with override taking precedence.
func NewConfiger(override string) (*Configer, error) {
	path, err := dotdir.NewManager().File(override, configFile)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return &Configer{targetPath: path}, nil
}

// ValidConfigKeys returns all supported configuration key names in section
// order.
func ValidConfigKeys() []string {
	result := make([]string, 0, len(configKeys))
	seen := make(map[string]bool, len(configKeys))
	for _, k := range orderedKeys {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
			seen[k] = true
		}
	}

	for k := range configKeys {
		if !seen[k] {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads config.toml from the target .relay/ directory. A missing
// file yields NewDefaultConfig(); fields set in the file override defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills every unset key in cfg from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = d.Version
	}

	for _, info := range configKeys {
		if info.get(cfg) != "" {
			continue
		}
		if def := info.get(d); def != "" {
			// Defaults are valid by construction.
			_ = info.set(cfg, def)
		}
	}
}

// SaveConfig persists the configuration to config.toml in the target .relay/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string form of key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}
	return cfg.Value(key)
}

// Value returns the string form of key in cfg. Unset values are "".
func (cfg *Config) Value(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}
	return info.get(cfg), nil
}

// PresetConfig returns a default Config pointed at the named provider.
// Supported presets: "openrouter", "openai", "ollama".
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch strings.ToLower(name) {
	case "openrouter":
		return cfg, nil

	case "openai":
		cfg.Upstream.Endpoint = "https://api.openai.com/v1/chat/completions"
		cfg.Upstream.Model = "gpt-4o-mini"
		cfg.Upstream.APIKeyEnv = "OPENAI_API_KEY"
		return cfg, nil

	case "ollama":
		cfg.Upstream.Endpoint = "http://localhost:11434/v1/chat/completions"
		cfg.Upstream.Model = "llama3.2"
		cfg.Upstream.APIKeyEnv = "OLLAMA_API_KEY"
		return cfg, nil

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"openrouter", "openai", "ollama"}
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	if _, err := cfg.Upstream.IdleTimeoutDuration(); err != nil {
		return nil, err
	}

	return cfg, nil
}

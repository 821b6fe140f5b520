package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent relay configuration stored as config.toml
// in the .relay/ directory. The TOML layout uses sections for logical grouping.
//
// API keys are never stored here. Upstream.APIKeyEnv names the environment
// variable the key is read from at startup.
type Config struct {
	Version     int               `toml:"version"`
	Upstream    UpstreamConfig    `toml:"upstream"`
	Server      ServerConfig      `toml:"server"`
	Client      ClientConfig      `toml:"client"`
	Storage     StorageConfig     `toml:"storage"`
	EventStream EventStreamConfig `toml:"eventstream"`
	Worker      WorkerConfig      `toml:"worker"`
}

// UpstreamConfig describes the chat-completions endpoint streams are relayed
// from.
type UpstreamConfig struct {
	Endpoint  string `toml:"endpoint,omitempty"`
	Model     string `toml:"model,omitempty"`
	APIKeyEnv string `toml:"api_key_env,omitempty"`

	// IdleTimeout is a Go duration string such as "2m". "0" disables it.
	IdleTimeout string `toml:"idle_timeout,omitempty"`

	// Headers are extra request headers sent to the upstream on every stream.
	Headers map[string]string `toml:"headers,omitempty"`
}

// IdleTimeoutDuration parses IdleTimeout. An empty value yields zero so the
// caller's default applies.
func (u UpstreamConfig) IdleTimeoutDuration() (time.Duration, error) {
	if u.IdleTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(u.IdleTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid upstream.idle_timeout: %w", err)
	}
	return d, nil
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running relay
// server (e.g. relay streams). Values are full URLs.
type ClientConfig struct {
	RelayTarget string `toml:"relay_target,omitempty"`
}

// StorageConfig selects the conversation store. PostgresDSN wins over
// SQLitePath; with neither set conversations are kept in memory.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventStreamConfig configures the optional Kafka mirror of stream events.
type EventStreamConfig struct {
	// KafkaBrokers is a comma separated list of host:port addresses.
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string `toml:"kafka_topic,omitempty"`
}

// WorkerConfig sizes the persistence worker pool.
type WorkerConfig struct {
	NumWorkers uint `toml:"num_workers,omitempty"`
	QueueSize  uint `toml:"queue_size,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"upstream.endpoint": {
		get: func(c *Config) string { return c.Upstream.Endpoint },
		set: func(c *Config, v string) error { c.Upstream.Endpoint = v; return nil },
	},
	"upstream.model": {
		get: func(c *Config) string { return c.Upstream.Model },
		set: func(c *Config, v string) error { c.Upstream.Model = v; return nil },
	},
	"upstream.api_key_env": {
		get: func(c *Config) string { return c.Upstream.APIKeyEnv },
		set: func(c *Config, v string) error { c.Upstream.APIKeyEnv = v; return nil },
	},
	"upstream.idle_timeout": {
		get: func(c *Config) string { return c.Upstream.IdleTimeout },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for upstream.idle_timeout: %w", err)
			}
			c.Upstream.IdleTimeout = v
			return nil
		},
	},
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"client.relay_target": {
		get: func(c *Config) string { return c.Client.RelayTarget },
		set: func(c *Config, v string) error { c.Client.RelayTarget = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"eventstream.kafka_brokers": {
		get: func(c *Config) string { return c.EventStream.KafkaBrokers },
		set: func(c *Config, v string) error { c.EventStream.KafkaBrokers = v; return nil },
	},
	"eventstream.kafka_topic": {
		get: func(c *Config) string { return c.EventStream.KafkaTopic },
		set: func(c *Config, v string) error { c.EventStream.KafkaTopic = v; return nil },
	},
	"worker.num_workers": {
		get: func(c *Config) string { return formatUint(c.Worker.NumWorkers) },
		set: func(c *Config, v string) error {
			n, err := parseUint("worker.num_workers", v)
			if err != nil {
				return err
			}
			c.Worker.NumWorkers = n
			return nil
		},
	},
	"worker.queue_size": {
		get: func(c *Config) string { return formatUint(c.Worker.QueueSize) },
		set: func(c *Config, v string) error {
			n, err := parseUint("worker.queue_size", v)
			if err != nil {
				return err
			}
			c.Worker.QueueSize = n
			return nil
		},
	},
}

func formatUint(n uint) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(n), 10)
}

func parseUint(key, v string) (uint, error) {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return uint(n), nil
}

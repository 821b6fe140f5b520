package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/papercomputeco/streamrelay/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable viper binds.
const EnvPrefix = "RELAY"

// apiKeyKey is never written to config.toml; it only resolves from the
// RELAY_UPSTREAM_API_KEY environment variable.
const apiKeyKey = "upstream.api_key"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the RELAY_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (RELAY_SERVER_LISTEN, RELAY_UPSTREAM_MODEL, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Upstream
	v.SetDefault("upstream.endpoint", d.Upstream.Endpoint)
	v.SetDefault("upstream.model", d.Upstream.Model)
	v.SetDefault("upstream.api_key_env", d.Upstream.APIKeyEnv)
	v.SetDefault("upstream.idle_timeout", d.Upstream.IdleTimeout)

	// Server and client
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("client.relay_target", d.Client.RelayTarget)

	// Storage
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Event stream
	v.SetDefault("eventstream.kafka_brokers", d.EventStream.KafkaBrokers)
	v.SetDefault("eventstream.kafka_topic", d.EventStream.KafkaTopic)

	// Worker
	v.SetDefault("worker.num_workers", d.Worker.NumWorkers)
	v.SetDefault("worker.queue_size", d.Worker.QueueSize)
}

// FromViper snapshots the resolved values of v into a Config.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Upstream: UpstreamConfig{
			Endpoint:    v.GetString("upstream.endpoint"),
			Model:       v.GetString("upstream.model"),
			APIKeyEnv:   v.GetString("upstream.api_key_env"),
			IdleTimeout: v.GetString("upstream.idle_timeout"),
			Headers:     v.GetStringMapString("upstream.headers"),
		},
		Server: ServerConfig{
			Listen: v.GetString("server.listen"),
		},
		Client: ClientConfig{
			RelayTarget: v.GetString("client.relay_target"),
		},
		Storage: StorageConfig{
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		EventStream: EventStreamConfig{
			KafkaBrokers: v.GetString("eventstream.kafka_brokers"),
			KafkaTopic:   v.GetString("eventstream.kafka_topic"),
		},
		Worker: WorkerConfig{
			NumWorkers: v.GetUint("worker.num_workers"),
			QueueSize:  v.GetUint("worker.queue_size"),
		},
	}
}

// ResolveAPIKey returns the upstream API key from the environment variable
// named by upstream.api_key_env, falling back to RELAY_UPSTREAM_API_KEY.
// An empty result means requests go out unauthenticated.
func ResolveAPIKey(v *viper.Viper) string {
	if name := v.GetString("upstream.api_key_env"); name != "" {
		if key := os.Getenv(name); key != "" {
			return key
		}
	}
	return v.GetString(apiKeyKey)
}

// Brokers splits the comma separated broker list, dropping blanks.
func (e EventStreamConfig) Brokers() []string {
	var brokers []string
	for b := range strings.SplitSeq(e.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Watch calls onChange with a fresh snapshot whenever the config file viper
// loaded is written. It reports false when no config file is in use.
func Watch(v *viper.Viper, onChange func(*Config)) bool {
	if v.ConfigFileUsed() == "" {
		return false
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(FromViper(v))
	})
	v.WatchConfig()

	return true
}

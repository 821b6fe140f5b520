package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --model
// on both "relay serve" and "relay chat").
type Flag struct {
	// Name is the long flag name (e.g. "endpoint").
	Name string

	// Shorthand is the one-letter short flag (e.g. "e"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "upstream.endpoint").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagEndpoint     = "endpoint"
	FlagModel        = "model"
	FlagAPIKeyEnv    = "api-key-env"
	FlagIdleTimeout  = "idle-timeout"
	FlagListen       = "listen"
	FlagRelayTarget  = "relay-target"
	FlagSQLite       = "sqlite"
	FlagPostgres     = "postgres"
	FlagKafkaBrokers = "kafka-brokers"
	FlagKafkaTopic   = "kafka-topic"
	FlagNumWorkers   = "workers"
	FlagQueueSize    = "queue-size"
)

// Flags is the registry shared by every relay command.
var Flags = FlagSet{
	FlagEndpoint: {
		Name:        "endpoint",
		Shorthand:   "e",
		ViperKey:    "upstream.endpoint",
		Description: "Upstream chat completions endpoint URL",
	},
	FlagModel: {
		Name:        "model",
		Shorthand:   "m",
		ViperKey:    "upstream.model",
		Description: "Model requested from the upstream",
	},
	FlagAPIKeyEnv: {
		Name:        "api-key-env",
		ViperKey:    "upstream.api_key_env",
		Description: "Environment variable holding the upstream API key",
	},
	FlagIdleTimeout: {
		Name:        "idle-timeout",
		ViperKey:    "upstream.idle_timeout",
		Description: "Abort a stream after this long without upstream data (0 disables)",
	},
	FlagListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "server.listen",
		Description: "Address for the relay HTTP server to listen on",
	},
	FlagRelayTarget: {
		Name:        "relay-target",
		ViperKey:    "client.relay_target",
		Description: "Relay server URL used by client commands",
	},
	FlagSQLite: {
		Name:        "sqlite",
		Shorthand:   "s",
		ViperKey:    "storage.sqlite_path",
		Description: "Path to SQLite database for conversations (default: in-memory)",
	},
	FlagPostgres: {
		Name:        "postgres",
		ViperKey:    "storage.postgres_dsn",
		Description: "PostgreSQL DSN for conversations (takes precedence over --sqlite)",
	},
	FlagKafkaBrokers: {
		Name:        "kafka-brokers",
		ViperKey:    "eventstream.kafka_brokers",
		Description: "Comma separated Kafka brokers to mirror stream events to",
	},
	FlagKafkaTopic: {
		Name:        "kafka-topic",
		ViperKey:    "eventstream.kafka_topic",
		Description: "Kafka topic for mirrored stream events",
	},
	FlagNumWorkers: {
		Name:        "workers",
		ViperKey:    "worker.num_workers",
		Description: "Number of persistence workers",
	},
	FlagQueueSize: {
		Name:        "queue-size",
		ViperKey:    "worker.queue_size",
		Description: "Capacity of the persistence queue",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}

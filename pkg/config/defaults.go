package config

const (
	defaultEndpoint    = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel       = "z-ai/glm-4.5-air:free"
	defaultAPIKeyEnv   = "OPENROUTER_API_KEY"
	defaultIdleTimeout = "2m"

	defaultListen      = ":8080"
	defaultRelayTarget = "http://localhost:8080"

	defaultKafkaTopic = "relay-stream-events"

	defaultNumWorkers = 3
	defaultQueueSize  = 256
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Upstream: UpstreamConfig{
			Endpoint:    defaultEndpoint,
			Model:       defaultModel,
			APIKeyEnv:   defaultAPIKeyEnv,
			IdleTimeout: defaultIdleTimeout,
		},
		Server: ServerConfig{
			Listen: defaultListen,
		},
		Client: ClientConfig{
			RelayTarget: defaultRelayTarget,
		},
		EventStream: EventStreamConfig{
			KafkaTopic: defaultKafkaTopic,
		},
		Worker: WorkerConfig{
			NumWorkers: defaultNumWorkers,
			QueueSize:  defaultQueueSize,
		},
	}
}

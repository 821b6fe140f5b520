package relay

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultEndpoint is the OpenRouter chat completions endpoint.
	DefaultEndpoint = "https://openrouter.ai/api/v1/chat/completions"

	// DefaultModel is the model selector sent with every request unless
	// configured otherwise.
	DefaultModel = "z-ai/glm-4.5-air:free"

	// DefaultIdleTimeout aborts a stream that stays silent this long.
	DefaultIdleTimeout = 2 * time.Minute
)

// Upstream describes the chat-completion endpoint streams are relayed from.
type Upstream struct {
	// Endpoint is the full chat completions URL.
	Endpoint string

	// Model is the model selector sent in each request body.
	Model string

	// APIKey is sent as a bearer credential. It is supplied by the caller
	// from the environment, never from source or the config file.
	APIKey string

	// Headers are extra request headers, e.g. HTTP-Referer and X-Title for
	// OpenRouter attribution.
	Headers map[string]string
}

func (u *Upstream) setDefaults() {
	if u.Endpoint == "" {
		u.Endpoint = DefaultEndpoint
	}
	if u.Model == "" {
		u.Model = DefaultModel
	}
}

func (u Upstream) validate() error {
	parsed, err := url.Parse(u.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid upstream endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid upstream endpoint %q: scheme must be http or https", u.Endpoint)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid upstream endpoint %q: missing host", u.Endpoint)
	}
	return nil
}

// Config is the relay configuration.
type Config struct {
	Upstream Upstream

	// IdleTimeout aborts a stream when the upstream sends nothing for this
	// long. Zero uses DefaultIdleTimeout; negative disables it.
	IdleTimeout time.Duration

	// HTTPClient performs upstream requests. It must not set a Timeout, which
	// would cut long streams; IdleTimeout covers stalled ones.
	HTTPClient *http.Client

	// NumWorkers and QueueSize size the persistence worker pool.
	NumWorkers uint
	QueueSize  uint
}

var errClientTimeout = errors.New("http client must not set a Timeout for streaming; use IdleTimeout")

func (c *Config) setDefaults() error {
	c.Upstream.setDefaults()

	switch {
	case c.IdleTimeout == 0:
		c.IdleTimeout = DefaultIdleTimeout
	case c.IdleTimeout < 0:
		c.IdleTimeout = 0
	}

	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.HTTPClient.Timeout != 0 {
		return errClientTimeout
	}

	return c.Upstream.validate()
}

package server

import "time"

const (
	defaultKeepAlive     = 15 * time.Second
	defaultMaxUploadSize = 20 << 20
)

// Config is the relay HTTP server configuration.
type Config struct {
	// ListenAddr is the address the server listens on (e.g. ":8080").
	ListenAddr string

	// KeepAlive is how often an idle event subscription receives a comment
	// frame. It also bounds how long a vanished subscriber lingers.
	KeepAlive time.Duration

	// MaxUploadSize caps POST /v1/files/encode bodies in bytes.
	MaxUploadSize int64

	// DisableMCP leaves /mcp unmounted.
	DisableMCP bool
}

func (c *Config) setDefaults() {
	if c.KeepAlive <= 0 {
		c.KeepAlive = defaultKeepAlive
	}
	if c.MaxUploadSize <= 0 {
		c.MaxUploadSize = defaultMaxUploadSize
	}
}

// Package servecmder provides the serve command, which runs the relay HTTP
// server.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/streamrelay/pkg/cliui"
	"github.com/papercomputeco/streamrelay/pkg/config"
	"github.com/papercomputeco/streamrelay/pkg/eventstream"
	"github.com/papercomputeco/streamrelay/pkg/eventstream/broker"
	"github.com/papercomputeco/streamrelay/pkg/eventstream/kafka"
	"github.com/papercomputeco/streamrelay/pkg/logger"
	"github.com/papercomputeco/streamrelay/pkg/storage"
	"github.com/papercomputeco/streamrelay/pkg/storage/inmemory"
	"github.com/papercomputeco/streamrelay/pkg/storage/postgres"
	"github.com/papercomputeco/streamrelay/pkg/storage/sqlite"
	"github.com/papercomputeco/streamrelay/relay"
	"github.com/papercomputeco/streamrelay/server"
)

type serveCommander struct {
	flags config.FlagSet
	v     *viper.Viper

	endpoint     string
	model        string
	apiKeyEnv    string
	idleTimeout  string
	listen       string
	sqlitePath   string
	postgresDSN  string
	kafkaBrokers string
	kafkaTopic   string
	numWorkers   uint
	queueSize    uint
	noMCP        bool

	logger *slog.Logger
}

const serveLongDesc string = `Run the relay HTTP server.

Streams are started with POST /v1/streams and followed as server-sent events
on GET /v1/streams/<id>/events. Every event is also published under its topic
streams/<id>/<kind>, and mirrored to Kafka when brokers are configured.

The upstream API key is read from the environment variable named by
--api-key-env (default OPENROUTER_API_KEY) or from RELAY_UPSTREAM_API_KEY.
It is never read from flags or config.toml.

Conversations are stored in PostgreSQL when --postgres is set, SQLite when
--sqlite is set, and in memory otherwise.

Edits to config.toml while the server runs update the upstream endpoint,
model and headers for streams started afterwards.

Examples:
  relay serve
  relay serve --model openai/gpt-4o-mini --sqlite ./relay.db
  relay serve --kafka-brokers localhost:9092`

const serveShortDesc string = "Run the relay HTTP server"

var serveFlags = []string{
	config.FlagEndpoint,
	config.FlagModel,
	config.FlagAPIKeyEnv,
	config.FlagIdleTimeout,
	config.FlagListen,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
	config.FlagNumWorkers,
	config.FlagQueueSize,
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{
		flags: config.Flags,
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, cmder.flags, serveFlags)
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.logger = logger.FromFlags(cmd.Flags())
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, cmder.flags, config.FlagEndpoint, &cmder.endpoint)
	config.AddStringFlag(cmd, cmder.flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, cmder.flags, config.FlagAPIKeyEnv, &cmder.apiKeyEnv)
	config.AddStringFlag(cmd, cmder.flags, config.FlagIdleTimeout, &cmder.idleTimeout)
	config.AddStringFlag(cmd, cmder.flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, cmder.flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, cmder.flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, cmder.flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, cmder.flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	config.AddUintFlag(cmd, cmder.flags, config.FlagNumWorkers, &cmder.numWorkers)
	config.AddUintFlag(cmd, cmder.flags, config.FlagQueueSize, &cmder.queueSize)
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Do not mount the MCP endpoint on /mcp")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	cfg := config.FromViper(c.v)

	relayConfig, err := RelayConfig(cfg, config.ResolveAPIKey(c.v))
	if err != nil {
		return err
	}

	var store storage.Driver
	err = cliui.Step(os.Stderr, "Opening conversation store", func() error {
		var err error
		store, err = NewStore(ctx, cfg.Storage, c.logger)
		return err
	})
	if err != nil {
		return err
	}
	defer store.Close()

	b := broker.New(broker.WithLogger(c.logger))
	publisher, err := NewPublisher(cfg.EventStream, b, c.logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	r, err := relay.New(relayConfig, publisher, store, c.logger)
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}
	defer r.Close()

	srv, err := server.NewServer(server.Config{
		ListenAddr: cfg.Server.Listen,
		DisableMCP: c.noMCP,
	}, r, b, store, c.logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	if config.Watch(c.v, func(updated *config.Config) {
		u := relay.Upstream{
			Endpoint: updated.Upstream.Endpoint,
			Model:    updated.Upstream.Model,
			APIKey:   config.ResolveAPIKey(c.v),
			Headers:  updated.Upstream.Headers,
		}
		if err := r.UpdateUpstream(u); err != nil {
			c.logger.Warn("ignoring config change", "error", err)
		}
	}) {
		c.logger.Info("watching config file", "path", c.v.ConfigFileUsed())
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
		c.logger.Info("context done, shutting down")
	}

	// Cancel live streams first so their subscribers see a terminal event
	// before the listener goes away.
	if err := r.Close(); err != nil {
		c.logger.Warn("closing relay", "error", err)
	}
	return srv.Shutdown()
}

// RelayConfig maps the resolved config onto relay.Config. An idle timeout of
// zero in the config disables it.
func RelayConfig(cfg *config.Config, apiKey string) (relay.Config, error) {
	idle, err := cfg.Upstream.IdleTimeoutDuration()
	if err != nil {
		return relay.Config{}, err
	}
	if idle == 0 && cfg.Upstream.IdleTimeout != "" {
		idle = -1
	}

	return relay.Config{
		Upstream: relay.Upstream{
			Endpoint: cfg.Upstream.Endpoint,
			Model:    cfg.Upstream.Model,
			APIKey:   apiKey,
			Headers:  cfg.Upstream.Headers,
		},
		IdleTimeout: idle,
		NumWorkers:  cfg.Worker.NumWorkers,
		QueueSize:   cfg.Worker.QueueSize,
	}, nil
}

// NewStore opens the configured conversation store. PostgreSQL wins over
// SQLite; with neither configured conversations live in memory.
func NewStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.Driver, error) {
	switch {
	case cfg.PostgresDSN != "":
		driver, err := postgres.NewDriver(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL store: %w", err)
		}
		logger.Info("using PostgreSQL storage")
		return driver, nil

	case cfg.SQLitePath != "":
		driver, err := sqlite.NewDriver(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite store: %w", err)
		}
		logger.Info("using SQLite storage", "path", cfg.SQLitePath)
		return driver, nil

	default:
		logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil
	}
}

// NewPublisher returns b, fanned out to Kafka as well when brokers are
// configured.
func NewPublisher(cfg config.EventStreamConfig, b *broker.Broker, logger *slog.Logger) (eventstream.Publisher, error) {
	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		return b, nil
	}

	kp, err := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   cfg.KafkaTopic,
	}, kafka.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}

	logger.Info("mirroring stream events to kafka", "brokers", brokers, "topic", cfg.KafkaTopic)
	return eventstream.Multi(b, kp), nil
}

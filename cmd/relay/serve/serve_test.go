package servecmder_test

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	servecmder "github.com/papercomputeco/streamrelay/cmd/relay/serve"
	"github.com/papercomputeco/streamrelay/pkg/config"
	"github.com/papercomputeco/streamrelay/pkg/eventstream/broker"
	"github.com/papercomputeco/streamrelay/pkg/logger"
	"github.com/papercomputeco/streamrelay/pkg/storage/inmemory"
	"github.com/papercomputeco/streamrelay/pkg/storage/sqlite"
)

var _ = Describe("NewServeCmd", func() {
	It("registers the relay flags with config defaults", func() {
		cmd := servecmder.NewServeCmd()
		Expect(cmd.Use).To(Equal("serve"))

		defaults := config.NewDefaultConfig()
		Expect(cmd.Flags().Lookup("model").DefValue).To(Equal(defaults.Upstream.Model))
		Expect(cmd.Flags().Lookup("listen").DefValue).To(Equal(defaults.Server.Listen))
		Expect(cmd.Flags().Lookup("workers").DefValue).To(Equal("3"))
		Expect(cmd.Flags().Lookup("no-mcp")).NotTo(BeNil())
	})

	It("has no API key flag", func() {
		cmd := servecmder.NewServeCmd()
		Expect(cmd.Flags().Lookup("api-key")).To(BeNil())
	})
})

var _ = Describe("RelayConfig", func() {
	It("carries upstream settings and the resolved key", func() {
		cfg := config.NewDefaultConfig()
		cfg.Upstream.Headers = map[string]string{"X-Title": "relay"}

		rc, err := servecmder.RelayConfig(cfg, "sk-test")
		Expect(err).NotTo(HaveOccurred())
		Expect(rc.Upstream.Endpoint).To(Equal(cfg.Upstream.Endpoint))
		Expect(rc.Upstream.APIKey).To(Equal("sk-test"))
		Expect(rc.Upstream.Headers).To(HaveKeyWithValue("X-Title", "relay"))
		Expect(rc.IdleTimeout).To(Equal(2 * time.Minute))
		Expect(rc.NumWorkers).To(Equal(uint(3)))
	})

	It("maps an explicit zero idle timeout to disabled", func() {
		cfg := config.NewDefaultConfig()
		cfg.Upstream.IdleTimeout = "0"

		rc, err := servecmder.RelayConfig(cfg, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(rc.IdleTimeout).To(BeNumerically("<", 0))
	})

	It("leaves an unset idle timeout to the relay default", func() {
		cfg := config.NewDefaultConfig()
		cfg.Upstream.IdleTimeout = ""

		rc, err := servecmder.RelayConfig(cfg, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(rc.IdleTimeout).To(BeZero())
	})

	It("rejects a malformed idle timeout", func() {
		cfg := config.NewDefaultConfig()
		cfg.Upstream.IdleTimeout = "soon"

		_, err := servecmder.RelayConfig(cfg, "")
		Expect(err).To(MatchError(ContainSubstring("idle_timeout")))
	})
})

var _ = Describe("NewStore", func() {
	ctx := context.Background()

	It("falls back to memory", func() {
		store, err := servecmder.NewStore(ctx, config.StorageConfig{}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(store).To(BeAssignableToTypeOf(&inmemory.Driver{}))
		Expect(store.Close()).To(Succeed())
	})

	It("opens SQLite when a path is set", func() {
		path := filepath.Join(GinkgoT().TempDir(), "relay.db")

		store, err := servecmder.NewStore(ctx, config.StorageConfig{SQLitePath: path}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(store).To(BeAssignableToTypeOf(&sqlite.Driver{}))
		Expect(store.Close()).To(Succeed())
	})
})

var _ = Describe("NewPublisher", func() {
	It("uses the broker alone without Kafka brokers", func() {
		b := broker.New()
		pub, err := servecmder.NewPublisher(config.EventStreamConfig{}, b, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(pub).To(BeIdenticalTo(b))
		Expect(pub.Close()).To(Succeed())
	})

	It("adds Kafka when brokers are configured", func() {
		b := broker.New()
		pub, err := servecmder.NewPublisher(config.EventStreamConfig{
			KafkaBrokers: "localhost:9092",
			KafkaTopic:   "relay-stream-events",
		}, b, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(pub).NotTo(BeIdenticalTo(b))
		Expect(pub.Close()).To(Succeed())
	})

	It("rejects brokers without a topic", func() {
		_, err := servecmder.NewPublisher(config.EventStreamConfig{KafkaBrokers: "localhost:9092"}, broker.New(), logger.Nop())
		Expect(err).To(HaveOccurred())
	})
})

package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamrelay/pkg/config"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads a valid config file and fills in the rest", func() {
			data := `version = 0

[upstream]
endpoint = "https://api.openai.com/v1/chat/completions"
model = "gpt-4o-mini"

[upstream.headers]
X-Title = "relay"

[worker]
num_workers = 8
`
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Upstream.Endpoint).To(Equal("https://api.openai.com/v1/chat/completions"))
			Expect(cfg.Upstream.Model).To(Equal("gpt-4o-mini"))
			Expect(cfg.Upstream.Headers).To(HaveKeyWithValue("X-Title", "relay"))
			Expect(cfg.Worker.NumWorkers).To(Equal(uint(8)))

			defaults := config.NewDefaultConfig()
			Expect(cfg.Upstream.APIKeyEnv).To(Equal(defaults.Upstream.APIKeyEnv))
			Expect(cfg.Server.Listen).To(Equal(defaults.Server.Listen))
			Expect(cfg.Worker.QueueSize).To(Equal(defaults.Worker.QueueSize))
		})

		It("returns error for malformed TOML", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("not valid [[["), 0o600)).To(Succeed())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
		})

		It("returns error for an unparseable idle timeout", func() {
			data := "[upstream]\nidle_timeout = \"soon\"\n"
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("upstream.idle_timeout")))
		})
	})

	Describe("SaveConfig", func() {
		It("round-trips every field", func() {
			cfg := &config.Config{
				Version: config.CurrentV,
				Upstream: config.UpstreamConfig{
					Endpoint:    "http://localhost:11434/v1/chat/completions",
					Model:       "llama3.2",
					APIKeyEnv:   "OLLAMA_API_KEY",
					IdleTimeout: "30s",
					Headers:     map[string]string{"HTTP-Referer": "https://example.com"},
				},
				Server:      config.ServerConfig{Listen: ":9090"},
				Client:      config.ClientConfig{RelayTarget: "http://myhost:9090"},
				Storage:     config.StorageConfig{SQLitePath: "/tmp/relay.sqlite"},
				EventStream: config.EventStreamConfig{KafkaBrokers: "a:9092,b:9092", KafkaTopic: "events"},
				Worker:      config.WorkerConfig{NumWorkers: 2, QueueSize: 16},
			}

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(cfg)).To(Succeed())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("writes the file owner-only", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(config.NewDefaultConfig())).To(Succeed())

			info, err := os.Stat(c.GetTarget())
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).To(MatchError(ContainSubstring("nil config")))
		})
	})

	Describe("SetConfigValue and GetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		It("sets and reads back a string key", func() {
			Expect(c.SetConfigValue("upstream.model", "openai/gpt-4o")).To(Succeed())

			v, err := c.GetConfigValue("upstream.model")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("openai/gpt-4o"))
		})

		It("sets a uint key", func() {
			Expect(c.SetConfigValue("worker.queue_size", "512")).To(Succeed())

			v, err := c.GetConfigValue("worker.queue_size")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("512"))
		})

		It("rejects an invalid uint", func() {
			err := c.SetConfigValue("worker.num_workers", "many")
			Expect(err).To(MatchError(ContainSubstring("invalid value for worker.num_workers")))

			v, err := c.GetConfigValue("worker.num_workers")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("3"))
		})

		It("rejects an invalid duration", func() {
			Expect(c.SetConfigValue("upstream.idle_timeout", "forever")).To(HaveOccurred())
		})

		It("returns error for unknown key", func() {
			Expect(c.SetConfigValue("proxy.provider", "x")).To(MatchError(ContainSubstring("unknown config key")))

			_, err := c.GetConfigValue("proxy.provider")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("preserves existing values when setting a new key", func() {
			Expect(c.SetConfigValue("server.listen", ":7000")).To(Succeed())
			Expect(c.SetConfigValue("storage.sqlite_path", "/tmp/a.db")).To(Succeed())

			v, err := c.GetConfigValue("server.listen")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(":7000"))
		})

		It("returns empty string for key with no default", func() {
			v, err := c.GetConfigValue("storage.postgres_dsn")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(BeEmpty())
		})
	})

	Describe("ValidConfigKeys", func() {
		It("lists every key in section order", func() {
			keys := config.ValidConfigKeys()
			Expect(keys).To(HaveLen(12))
			Expect(keys[0]).To(Equal("upstream.endpoint"))
			Expect(keys).To(ContainElements("eventstream.kafka_brokers", "worker.queue_size"))
			Expect(keys).NotTo(ContainElement("upstream.api_key"))
		})

		It("agrees with IsValidConfigKey", func() {
			for _, k := range config.ValidConfigKeys() {
				Expect(config.IsValidConfigKey(k)).To(BeTrue(), k)
			}
			Expect(config.IsValidConfigKey("")).To(BeFalse())
			Expect(config.IsValidConfigKey("upstream")).To(BeFalse())
		})
	})
})

var _ = Describe("PresetConfig", func() {
	It("returns the defaults for openrouter", func() {
		cfg, err := config.PresetConfig("openrouter")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(config.NewDefaultConfig()))
	})

	It("points openai at its endpoint and key variable", func() {
		cfg, err := config.PresetConfig("OpenAI")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Upstream.Endpoint).To(Equal("https://api.openai.com/v1/chat/completions"))
		Expect(cfg.Upstream.APIKeyEnv).To(Equal("OPENAI_API_KEY"))
		Expect(cfg.Server.Listen).To(Equal(":8080"))
	})

	It("points ollama at localhost", func() {
		cfg, err := config.PresetConfig("ollama")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Upstream.Endpoint).To(HavePrefix("http://localhost:11434"))
	})

	It("returns error for unknown preset", func() {
		cfg, err := config.PresetConfig("anthropic")
		Expect(err).To(MatchError(ContainSubstring("unknown preset")))
		Expect(cfg).To(BeNil())
	})

	It("lists its names", func() {
		Expect(config.ValidPresetNames()).To(ConsistOf("openrouter", "openai", "ollama"))
	})
})

var _ = Describe("ParseConfigTOML", func() {
	It("returns empty config for empty input", func() {
		cfg, err := config.ParseConfigTOML([]byte(""))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Upstream.Endpoint).To(BeEmpty())
	})

	It("rejects unsupported config version", func() {
		cfg, err := config.ParseConfigTOML([]byte("version = 2\n"))
		Expect(err).To(MatchError(ContainSubstring("unsupported config version")))
		Expect(cfg).To(BeNil())
	})
})

var _ = Describe("UpstreamConfig", func() {
	It("parses the idle timeout", func() {
		d, err := config.UpstreamConfig{IdleTimeout: "90s"}.IdleTimeoutDuration()
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Seconds()).To(Equal(90.0))
	})

	It("treats an empty idle timeout as unset", func() {
		d, err := config.UpstreamConfig{}.IdleTimeoutDuration()
		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(BeZero())
	})
})

var _ = Describe("EventStreamConfig", func() {
	It("splits and trims the broker list", func() {
		e := config.EventStreamConfig{KafkaBrokers: " a:9092, ,b:9092 "}
		Expect(e.Brokers()).To(Equal([]string{"a:9092", "b:9092"}))
	})

	It("returns nothing when unset", func() {
		Expect(config.EventStreamConfig{}.Brokers()).To(BeEmpty())
	})
})

package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	configcmder "github.com/papercomputeco/streamrelay/cmd/relay/config"
	"github.com/papercomputeco/streamrelay/pkg/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir  string
		origDir string
		out     *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := configcmder.NewConfigCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir = GinkgoT().TempDir()

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		// Create a local .relay dir so the manager picks it up
		Expect(os.MkdirAll(filepath.Join(tmpDir, ".relay"), 0o755)).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())

		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
	})

	Describe("set subcommand", func() {
		It("sets a config value successfully", func() {
			Expect(run("set", "upstream.model", "openai/gpt-4o-mini")).To(Succeed())

			data, err := os.ReadFile(filepath.Join(tmpDir, ".relay", "config.toml"))
			Expect(err).NotTo(HaveOccurred())

			cfg, err := config.ParseConfigTOML(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Upstream.Model).To(Equal("openai/gpt-4o-mini"))
		})

		It("rejects unknown keys", func() {
			Expect(run("set", "invalid_key", "value")).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("rejects malformed durations", func() {
			Expect(run("set", "upstream.idle_timeout", "soon")).To(HaveOccurred())
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "upstream.model")).To(HaveOccurred())
		})
	})

	Describe("get subcommand", func() {
		It("prints a value previously set", func() {
			Expect(run("set", "worker.queue_size", "512")).To(Succeed())
			out.Reset()

			Expect(run("get", "worker.queue_size")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("512"))
		})

		It("prints defaults when nothing is set", func() {
			Expect(run("get", "server.listen")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(":8080"))
		})

		It("marks empty values as not set", func() {
			Expect(run("get", "storage.postgres_dsn")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("<not set>"))
		})
	})

	Describe("list subcommand", func() {
		It("lists every key", func() {
			Expect(run("list")).To(Succeed())
			for _, key := range config.ValidConfigKeys() {
				Expect(out.String()).To(ContainSubstring(key))
			}
		})

		It("shows environment overrides with --effective", func() {
			GinkgoT().Setenv("RELAY_UPSTREAM_MODEL", "env/model")
			Expect(run("set", "upstream.model", "file/model")).To(Succeed())
			out.Reset()

			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("file/model"))
			Expect(out.String()).NotTo(ContainSubstring("env/model"))
			out.Reset()

			Expect(run("list", "--effective")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("env/model"))
		})
	})
})

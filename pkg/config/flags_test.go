package config_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/streamrelay/pkg/config"
)

var _ = Describe("Flags", func() {
	It("maps every registry entry to a known config key", func() {
		for key, f := range config.Flags {
			Expect(f.Name).To(Equal(key))
			Expect(config.IsValidConfigKey(f.ViperKey)).To(BeTrue(), f.ViperKey)
		}
	})

	It("registers flags with defaults from the config", func() {
		cmd := &cobra.Command{Use: "test"}
		var listen string
		var workers uint
		config.AddStringFlag(cmd, config.Flags, config.FlagListen, &listen)
		config.AddUintFlag(cmd, config.Flags, config.FlagNumWorkers, &workers)

		Expect(listen).To(Equal(":8080"))
		Expect(workers).To(Equal(uint(3)))
		Expect(cmd.Flags().ShorthandLookup("l")).NotTo(BeNil())
	})

	It("ignores unknown registry keys", func() {
		cmd := &cobra.Command{Use: "test"}
		var s string
		config.AddStringFlag(cmd, config.Flags, "nope", &s)
		Expect(cmd.Flags().HasFlags()).To(BeFalse())
	})

	It("binds set flags above config values", func() {
		v, err := config.InitViper(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var model string
		config.AddStringFlag(cmd, config.Flags, config.FlagModel, &model)
		Expect(cmd.Flags().Set("model", "openai/gpt-4o")).To(Succeed())

		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagModel, config.FlagListen})
		Expect(v.GetString("upstream.model")).To(Equal("openai/gpt-4o"))
		Expect(v.GetString("server.listen")).To(Equal(":8080"))
	})
})

// Package configcmder provides the config command for managing persistent
// relay configuration stored in the .relay/ directory.
package configcmder

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/streamrelay/pkg/cliui"
	"github.com/papercomputeco/streamrelay/pkg/config"
)

const configLongDesc string = `Manage persistent relay configuration.

Configuration is stored as config.toml in the .relay/ directory and provides
default values for command flags. CLI flags and RELAY_* environment variables
always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  upstream.endpoint, upstream.model, upstream.api_key_env, upstream.idle_timeout,
  server.listen, client.relay_target,
  storage.sqlite_path, storage.postgres_dsn,
  eventstream.kafka_brokers, eventstream.kafka_topic,
  worker.num_workers, worker.queue_size

API keys are never stored in config.toml. Set upstream.api_key_env to the name
of the environment variable that holds the key.

Examples:
  relay config set upstream.model openai/gpt-4o-mini
  relay config set upstream.idle_timeout 90s
  relay config get upstream.endpoint
  relay config list --effective`

const configShortDesc string = "Manage persistent relay configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd(), newGetCmd(), newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if config.IsValidConfigKey(key) {
		return nil
	}
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}

// openConfiger resolves the config file from --config-dir and prints which
// one the command works on.
func openConfiger(cmd *cobra.Command) (*config.Configer, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	w := cmd.OutOrStdout()
	target := cfger.GetTarget()
	fmt.Fprintf(w, "\n  %s %s\n", cliui.KeyStyle.Render("Config file:"), cliui.DimStyle.Render(target))
	if _, err := os.Stat(target); err != nil {
		fmt.Fprintf(w, "  %s\n", cliui.DimStyle.Render("(not created yet, using defaults)"))
	}
	fmt.Fprintln(w)
	return cfger, nil
}

// printValue writes one key/value row, padding the key to width.
func printValue(w io.Writer, key, value string, width int) {
	shown := cliui.ValueStyle.Render(value)
	if value == "" {
		shown = cliui.DimStyle.Render("<not set>")
	}
	fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-*s", width, key)), shown)
}

package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/streamrelay/pkg/config"
)

const listLongDesc string = `List all configuration values.

By default the values stored in config.toml are shown, with built-in defaults
for unset keys. With --effective the values a command would actually use are
shown instead, including RELAY_* environment overrides.

Examples:
  relay config list
  RELAY_UPSTREAM_MODEL=openai/gpt-4o relay config list --effective`

func newListCmd() *cobra.Command {
	var effective bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all configuration values",
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfger, err := openConfiger(cmd)
			if err != nil {
				return err
			}

			var cfg *config.Config
			if effective {
				configDir, _ := cmd.Flags().GetString("config-dir")
				v, err := config.InitViper(configDir)
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				cfg = config.FromViper(v)
			} else if cfg, err = cfger.LoadConfig(); err != nil {
				return err
			}

			keys := config.ValidConfigKeys()
			width := 0
			for _, k := range keys {
				width = max(width, len(k))
			}

			for _, key := range keys {
				value, err := cfg.Value(key)
				if err != nil {
					return err
				}
				printValue(cmd.OutOrStdout(), key, value, width)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().BoolVar(&effective, "effective", false, "Show values after environment overrides")

	return cmd
}

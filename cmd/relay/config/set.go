package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/streamrelay/pkg/cliui"
)

const setLongDesc string = `Set a configuration value in config.toml.

Durations such as upstream.idle_timeout use Go syntax ("90s", "2m", "0" to
disable). Worker sizes must be non-negative integers.

Examples:
  relay config set upstream.endpoint https://api.openai.com/v1/chat/completions
  relay config set upstream.api_key_env OPENAI_API_KEY
  relay config set worker.num_workers 8`

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "set <key> <value>",
		Short:             "Set a configuration value",
		Long:              setLongDesc,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if err := checkKey(key); err != nil {
				return err
			}

			cfger, err := openConfiger(cmd)
			if err != nil {
				return err
			}

			if err := cfger.SetConfigValue(key, value); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "  %s Set %s = %s\n\n",
				cliui.SuccessMark, cliui.KeyStyle.Render(key), cliui.ValueStyle.Render(value))
			return nil
		},
	}
}

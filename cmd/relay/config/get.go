package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"
)

const getLongDesc string = `Get a configuration value from config.toml.

Unset keys print their built-in default, or <not set> when there is none.

Examples:
  relay config get upstream.model
  relay config get storage.sqlite_path`

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "get <key>",
		Short:             "Get a configuration value",
		Long:              getLongDesc,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := checkKey(key); err != nil {
				return err
			}

			cfger, err := openConfiger(cmd)
			if err != nil {
				return err
			}

			value, err := cfger.GetConfigValue(key)
			if err != nil {
				return err
			}

			printValue(cmd.OutOrStdout(), key, value, len(key))
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

// Package topcmder provides the top command, a live terminal view of a relay
// server's streams.
package topcmder

import (
	"fmt"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/streamrelay/pkg/config"
	"github.com/papercomputeco/streamrelay/pkg/relayclient"
)

const topLongDesc string = `Show the live streams of a running relay server, refreshed periodically.

Move with j/k or the arrow keys, press x to cancel the selected stream,
r to refresh now and q to quit.

Examples:
  relay top
  relay top --interval 500ms --relay-target http://relay.internal:8080`

const topShortDesc string = "Live view of a relay server's streams"

var topFlags = []string{config.FlagRelayTarget}

type topCommander struct {
	flags    config.FlagSet
	target   string
	interval time.Duration
	v        *viper.Viper
}

func NewTopCmd() *cobra.Command {
	cmder := &topCommander{flags: config.Flags}

	cmd := &cobra.Command{
		Use:   "top",
		Short: topShortDesc,
		Long:  topLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, cmder.flags, topFlags)
			cmder.v = v

			if cmder.interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := relayclient.New(cmder.v.GetString("client.relay_target"))
			if err != nil {
				return err
			}

			program := tea.NewProgram(newTopModel(cmd.Context(), client, cmder.interval),
				tea.WithContext(cmd.Context()),
			)
			_, err = program.Run()
			return err
		},
	}

	config.AddStringFlag(cmd, cmder.flags, config.FlagRelayTarget, &cmder.target)
	cmd.Flags().DurationVar(&cmder.interval, "interval", 2*time.Second, "Refresh interval")

	return cmd
}

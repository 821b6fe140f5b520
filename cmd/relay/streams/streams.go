// Package streamscmder provides the streams command for listing and
// cancelling streams on a running relay server.
package streamscmder

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/streamrelay/pkg/cliui"
	"github.com/papercomputeco/streamrelay/pkg/config"
	"github.com/papercomputeco/streamrelay/pkg/relayclient"
)

const streamsLongDesc string = `List the live streams of a running relay server.

Examples:
  relay streams
  relay streams --relay-target http://relay.internal:8080
  relay streams cancel 3f2a9c1e-...`

const streamsShortDesc string = "List or cancel streams on a relay server"

var streamsFlags = []string{config.FlagRelayTarget}

type streamsCommander struct {
	flags  config.FlagSet
	target string
	v      *viper.Viper
}

func NewStreamsCmd() *cobra.Command {
	cmder := &streamsCommander{flags: config.Flags}

	cmd := &cobra.Command{
		Use:   "streams",
		Short: streamsShortDesc,
		Long:  streamsLongDesc,
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, cmder.flags, streamsFlags)
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := cmder.client()
			if err != nil {
				return err
			}
			return listStreams(cmd.Context(), cmd.OutOrStdout(), client)
		},
	}

	// Persistent so "streams cancel" accepts it too.
	def := cmder.flags[config.FlagRelayTarget]
	cmd.PersistentFlags().StringVar(&cmder.target, def.Name, config.NewDefaultConfig().Client.RelayTarget, def.Description)

	cmd.AddCommand(&cobra.Command{
		Use:   "cancel <id>...",
		Short: "Cancel streams by id",
		Long:  "Cancel one or more streams by id. Unknown ids are ignored by the server.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := cmder.client()
			if err != nil {
				return err
			}
			return cancelStreams(cmd.Context(), cmd.OutOrStdout(), client, args)
		},
	})

	return cmd
}

func (c *streamsCommander) client() (*relayclient.Client, error) {
	return relayclient.New(c.v.GetString("client.relay_target"))
}

func listStreams(ctx context.Context, w io.Writer, client *relayclient.Client) error {
	streams, err := client.ListStreams(ctx)
	if err != nil {
		return err
	}

	rows := make([]cliui.StreamRow, 0, len(streams))
	for _, s := range streams {
		rows = append(rows, cliui.StreamRow{ID: s.ID, StartedAt: s.StartedAt})
	}
	cliui.RenderStreams(w, rows, time.Now())
	return nil
}

func cancelStreams(ctx context.Context, w io.Writer, client *relayclient.Client, ids []string) error {
	for _, id := range ids {
		if err := client.CancelStream(ctx, id); err != nil {
			fmt.Fprintf(w, "  %s %s\n", cliui.FailMark, id)
			return err
		}
		fmt.Fprintf(w, "  %s %s\n", cliui.SuccessMark, id)
	}
	return nil
}

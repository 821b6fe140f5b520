// Package relaycmder is the root "relay" command.
package relaycmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/streamrelay/cmd/relay/chat"
	configcmder "github.com/papercomputeco/streamrelay/cmd/relay/config"
	initcmder "github.com/papercomputeco/streamrelay/cmd/relay/init"
	servecmder "github.com/papercomputeco/streamrelay/cmd/relay/serve"
	streamscmder "github.com/papercomputeco/streamrelay/cmd/relay/streams"
	topcmder "github.com/papercomputeco/streamrelay/cmd/relay/top"
	versioncmder "github.com/papercomputeco/streamrelay/cmd/version"
)

const relayLongDesc string = `Relay streams chat completions from an upstream endpoint and republishes
them frame by frame as stream events.

Run the server using:
  relay serve          Run the relay HTTP server

Talk to it using:
  relay chat           Interactive chat through an in-process relay
  relay streams        List or cancel streams on a running server
  relay top            Live view of a running server's streams`

const relayShortDesc string = "Relay - streaming chat completion relay"

func NewRelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "relay",
		Short:         relayShortDesc,
		Long:          relayLongDesc,
		SilenceUsage:  true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().Bool("json", false, "Emit logs as JSON")
	cmd.PersistentFlags().Bool("pretty", false, "Emit colorized logs for interactive use")
	cmd.PersistentFlags().String("config-dir", "", "Override the .relay/ config directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(streamscmder.NewStreamsCmd())
	cmd.AddCommand(topcmder.NewTopCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

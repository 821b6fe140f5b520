// Package chatcmder provides the chat command for interactive chat through an
// in-process relay.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	servecmder "github.com/papercomputeco/streamrelay/cmd/relay/serve"
	"github.com/papercomputeco/streamrelay/pkg/chat"
	"github.com/papercomputeco/streamrelay/pkg/cliui"
	"github.com/papercomputeco/streamrelay/pkg/config"
	"github.com/papercomputeco/streamrelay/pkg/dotdir"
	"github.com/papercomputeco/streamrelay/pkg/eventstream"
	"github.com/papercomputeco/streamrelay/pkg/eventstream/broker"
	"github.com/papercomputeco/streamrelay/pkg/logger"
	"github.com/papercomputeco/streamrelay/pkg/storage"
	"github.com/papercomputeco/streamrelay/pkg/utils"
	"github.com/papercomputeco/streamrelay/relay"
)

const chatLogFile = "chat.log"

type chatCommander struct {
	flags     config.FlagSet
	v         *viper.Viper
	configDir string

	endpoint   string
	model      string
	apiKeyEnv  string
	sqlitePath string
	fresh      bool
	markdown   bool
	system     string

	logger *slog.Logger
}

const chatLongDesc string = `Start an interactive chat session through an in-process relay.

Each reply is streamed from the configured upstream as it arrives. Press
Ctrl+C while a reply is streaming to cancel it; the partial reply is
discarded. Type /exit or press Ctrl+D to quit, /new to start over.

The conversation is saved in the .relay/ directory and resumed on the next
run. Use --new to start a fresh conversation instead. With --sqlite the
messages are also recorded in a conversation store.

Examples:
  relay chat
  relay chat --model openai/gpt-4o-mini
  relay chat --new --system "Answer in one sentence."`

const chatShortDesc string = "Interactive chat through the relay"

var chatFlags = []string{
	config.FlagEndpoint,
	config.FlagModel,
	config.FlagAPIKeyEnv,
	config.FlagSQLite,
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{
		flags: config.Flags,
	}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, cmder.flags, chatFlags)
			cmder.v = v

			if !cmd.Flags().Changed("markdown") {
				cmder.markdown = term.IsTerminal(int(os.Stdout.Fd())) && !termenv.EnvNoColor()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, logFile, err := cmder.newLogger(cmd)
			if err != nil {
				return err
			}
			defer logFile.Close()

			cmder.logger = l
			return cmder.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, cmder.flags, config.FlagEndpoint, &cmder.endpoint)
	config.AddStringFlag(cmd, cmder.flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, cmder.flags, config.FlagAPIKeyEnv, &cmder.apiKeyEnv)
	config.AddStringFlag(cmd, cmder.flags, config.FlagSQLite, &cmder.sqlitePath)
	cmd.Flags().BoolVar(&cmder.fresh, "new", false, "Start a new conversation instead of resuming the saved one")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render each finished reply as markdown (default: on for color terminals)")
	cmd.Flags().StringVar(&cmder.system, "system", "", "System prompt for a new conversation")

	return cmd
}

// newLogger writes JSON records to chat.log in the .relay/ directory so they
// do not interleave with the conversation. With --debug they are also shown
// on stderr.
func (c *chatCommander) newLogger(cmd *cobra.Command) (*slog.Logger, io.Closer, error) {
	path, err := dotdir.NewManager().File(c.configDir, chatLogFile)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening chat log: %w", err)
	}

	debug, _ := cmd.Flags().GetBool("debug")
	fileLogger := logger.New(logger.WithWriter(f), logger.WithJSON(true), logger.WithDebug(debug))
	if !debug {
		return fileLogger, f, nil
	}

	stderrLogger := logger.New(logger.WithWriter(os.Stderr), logger.WithPretty(true), logger.WithDebug(true))
	return logger.Multi(fileLogger, stderrLogger), f, nil
}

func (c *chatCommander) run(ctx context.Context, in io.Reader, out io.Writer) error {
	cfg := config.FromViper(c.v)

	relayConfig, err := servecmder.RelayConfig(cfg, config.ResolveAPIKey(c.v))
	if err != nil {
		return err
	}

	var store storage.Driver
	if cfg.Storage.SQLitePath != "" {
		store, err = servecmder.NewStore(ctx, config.StorageConfig{SQLitePath: cfg.Storage.SQLitePath}, c.logger)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	b := broker.New(broker.WithRetain(1), broker.WithLogger(c.logger))
	defer b.Close()

	r, err := relay.New(relayConfig, b, store, c.logger)
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}
	defer r.Close()

	ddm := dotdir.NewManager()
	state, err := c.loadState(ddm)
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	if len(state.Messages) > 0 {
		fmt.Fprintf(out, "  %s Resuming conversation %s %s\n",
			cliui.SuccessMark,
			cliui.ValueStyle.Render(utils.Truncate(state.ConversationID, 8)),
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(state.Messages))),
		)
	} else {
		fmt.Fprintf(out, "  %s New conversation\n", cliui.DimStyle.Render("●"))
	}
	fmt.Fprintf(out, "  %s %s\n\n", cliui.KeyStyle.Render("Model:"), cliui.ValueStyle.Render(cfg.Upstream.Model))
	fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. Ctrl+C cancels a reply. /exit or Ctrl+D to quit."))

	t := &turn{streams: r, events: b, out: out, markdown: c.markdown}
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, cliui.UserPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/exit":
			fmt.Fprintln(out)
			return nil
		case "/new":
			state = c.newState()
			if err := ddm.ClearChatState(c.configDir); err != nil {
				return err
			}
			fmt.Fprintf(out, "  %s New conversation\n\n", cliui.DimStyle.Render("●"))
			continue
		}

		messages := append(slices.Clone(state.Messages), chat.NewMessage(chat.RoleUser, input))

		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		reply, err := t.run(turnCtx, relay.StartRequest{
			ConversationID: state.ConversationID,
			Messages:       messages,
		})
		stop()

		if err != nil {
			fmt.Fprintf(out, "\n  %s %v\n\n", cliui.FailMark, err)
			continue
		}

		state.Messages = append(messages, chat.NewMessage(chat.RoleAssistant, reply))
		if err := ddm.SaveChatState(state, c.configDir); err != nil {
			c.logger.Warn("saving chat state", "error", err)
		}
		fmt.Fprint(out, "\n\n")
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(out)
	return nil
}

func (c *chatCommander) loadState(ddm *dotdir.Manager) (*dotdir.ChatState, error) {
	if c.fresh {
		if err := ddm.ClearChatState(c.configDir); err != nil {
			return nil, err
		}
		return c.newState(), nil
	}

	state, err := ddm.LoadChatState(c.configDir)
	if err != nil {
		return nil, fmt.Errorf("loading chat state: %w", err)
	}
	if state == nil || state.ConversationID == "" {
		return c.newState(), nil
	}
	return state, nil
}

func (c *chatCommander) newState() *dotdir.ChatState {
	state := &dotdir.ChatState{ConversationID: uuid.NewString()}
	if c.system != "" {
		state.Messages = append(state.Messages, chat.NewMessage(chat.RoleSystem, c.system))
	}
	return state
}

// streamer is the part of *relay.Relay a turn needs.
type streamer interface {
	Start(ctx context.Context, req relay.StartRequest) (string, error)
	Cancel(id string) bool
}

// ErrCancelled is returned by a turn whose reply was cancelled.
var ErrCancelled = errors.New("reply cancelled")

// turn streams one assistant reply to out.
type turn struct {
	streams  streamer
	events   *broker.Broker
	out      io.Writer
	markdown bool
}

// run starts a stream for req and prints its content as it arrives, or once
// finished as rendered markdown. Cancelling ctx cancels the stream. The full
// reply is returned only when the stream ended normally.
func (t *turn) run(ctx context.Context, req relay.StartRequest) (string, error) {
	id, err := t.streams.Start(context.Background(), req)
	if err != nil {
		return "", err
	}

	sub := t.events.Subscribe(id)
	defer sub.Close()

	fmt.Fprint(t.out, cliui.AssistantPrompt)

	var reply strings.Builder
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				return "", err
			}
			// Interrupted: cancel and wait for the terminal message.
			t.streams.Cancel(id)
			ctx = context.Background()
			continue
		}

		switch p := msg.Payload.(type) {
		case eventstream.ChunkPayload:
			if p.Content != nil {
				reply.WriteString(*p.Content)
				if !t.markdown {
					fmt.Fprint(t.out, *p.Content)
				}
			}

		case eventstream.EndPayload:
			if t.markdown {
				rendered, _ := cliui.RenderMarkdown(reply.String())
				fmt.Fprint(t.out, "\n"+strings.TrimRight(rendered, "\n"))
			}
			return reply.String(), nil

		case eventstream.ErrorPayload:
			return "", errors.New(p.Error)

		case eventstream.CancelledPayload:
			return "", ErrCancelled
		}
	}
}

// Package chatcmder provides the chat command, an interactive terminal client
// for a running chat relay.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/stream"
)

const (
	exitCommand = "/exit"
	newCommand  = "/new"
)

type chatCommander struct {
	relayTarget string
	markdown    bool
	debug       bool

	in  io.Reader
	out io.Writer
	tty bool

	viper  *viper.Viper
	logger *slog.Logger
}

var chatFlags = config.FlagSet{
	config.FlagRelayTarget: {Name: "relay-target", Shorthand: "r", ViperKey: "client.relay_target", Description: "Chat relay URL"},
}

const chatLongDesc string = `Start an interactive chat session with a running chat relay.

Each line you enter is sent to the relay together with the conversation so
far, and the answer is printed as it streams in. Failed turns are shown
inline and are not sent back as history.

Commands:
  /new     Start a new conversation
  /exit    Quit (Ctrl+D also works)

Examples:
  chatrelay chat
  chatrelay chat --relay-target http://localhost:9000
  chatrelay chat --markdown`

const chatShortDesc string = "Interactive chat through a running relay"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{
		in:  os.Stdin,
		out: os.Stdout,
		tty: term.IsTerminal(int(os.Stdout.Fd())),
	}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, chatFlags, []string{config.FlagRelayTarget})
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.relayTarget = cmder.viper.GetString("client.relay_target")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return cmder.run(ctx)
		},
	}

	config.AddStringFlag(cmd, chatFlags, config.FlagRelayTarget, &cmder.relayTarget)
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render each finished answer as markdown instead of streaming raw text")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithPretty(true), logger.WithWriter(os.Stderr))
	cl := newClient(c.relayTarget, c.logger)

	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "  %s %s\n\n", c.paint(cliui.KeyStyle, "Relay:"), c.paint(cliui.NameStyle, c.relayTarget))
	fmt.Fprintf(c.out, "  %s\n\n", c.paint(cliui.DimStyle, "Type your message and press Enter. /new starts over, /exit or Ctrl+D quits."))

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(c.out, c.paint(cliui.UserStyle, "you> "))
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case exitCommand:
			fmt.Fprintln(c.out)
			return nil
		case newCommand:
			cl.Reset()
			fmt.Fprintf(c.out, "  %s\n\n", c.paint(cliui.DimStyle, "New conversation"))
			continue
		}

		if err := c.turn(ctx, cl, input); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// turn sends one message and prints the answer.
func (c *chatCommander) turn(ctx context.Context, cl *client, input string) error {
	fmt.Fprint(c.out, c.paint(cliui.AssistantStyle, "assistant> "))

	var onDelta func(string)
	if !c.markdown {
		onDelta = func(text string) { fmt.Fprint(c.out, text) }
	}

	entry, err := cl.Send(ctx, input, onDelta)
	if err != nil {
		return err
	}

	c.finish(entry)
	return nil
}

// finish prints whatever the streamed deltas did not already show.
func (c *chatCommander) finish(entry stream.Entry) {
	content := entry.Message.Content.String()

	switch {
	case entry.Err:
		fmt.Fprintf(c.out, "\n%s\n\n", c.paint(cliui.ErrorStyle, content))
	case c.markdown:
		fmt.Fprintf(c.out, "\n%s\n", c.render(content))
	case content == stream.Placeholder:
		fmt.Fprintf(c.out, "%s\n\n", c.paint(cliui.DimStyle, content))
	default:
		fmt.Fprint(c.out, "\n\n")
	}
}

func (c *chatCommander) render(content string) string {
	if !c.tty {
		return content + "\n"
	}

	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = min(w-4, 100)
	}

	rendered, err := cliui.RenderMarkdown(content, width)
	if err != nil {
		c.logger.Debug("rendering markdown", "error", err)
	}
	return rendered
}

// paint styles text on a terminal and leaves it plain otherwise.
func (c *chatCommander) paint(style lipgloss.Style, text string) string {
	if !c.tty {
		return text
	}
	return style.Render(text)
}

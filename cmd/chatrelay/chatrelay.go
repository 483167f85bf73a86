// Package chatrelaycmder is the root of the chatrelay command tree.
package chatrelaycmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/auth"
	chatcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/chat"
	configcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/config"
	initcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/init"
	servecmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/serve"
	versioncmder "github.com/papercomputeco/chatrelay/cmd/version"
)

const chatrelayLongDesc string = `chatrelay streams chat completions from an upstream LLM provider to a
browser or terminal as OpenAI-style server-sent events.

Run services using:
  chatrelay serve      Run the relay
  chatrelay chat       Chat with a running relay from the terminal
  chatrelay init       Create a local .chatrelay/ directory
  chatrelay config     Manage persistent configuration
  chatrelay auth       Store upstream API keys`

const chatrelayShortDesc string = "chatrelay - streaming chat relay"

func NewChatrelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "chatrelay",
		Short:        chatrelayShortDesc,
		Long:         chatrelayLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .chatrelay/ directory holding config.toml")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

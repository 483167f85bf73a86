// Package servecmder provides the serve command that runs the chat relay.
package servecmder

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/credentials"
	"github.com/papercomputeco/chatrelay/pkg/llm/provider"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/utils"
	"github.com/papercomputeco/chatrelay/relay"
)

type ServeCommander struct {
	listen     string
	keepAlive  string
	timeout    string
	shape      string
	baseURL    string
	path       string
	model      string
	authHeader string
	authPrefix string
	apiKey     string
	system     string
	promptFile string

	logFile string
	debug   bool

	viper  *viper.Viper
	logger *slog.Logger
}

var serveFlags = config.FlagSet{
	config.FlagListen:     {Name: "listen", Shorthand: "l", ViperKey: "relay.listen", Description: "Address for the relay to listen on"},
	config.FlagKeepAlive:  {Name: "keepalive", ViperKey: "relay.keepalive", Description: "Interval between keep-alive comments on idle streams"},
	config.FlagTimeout:    {Name: "timeout", ViperKey: "relay.timeout", Description: "How long to wait for upstream response headers"},
	config.FlagShape:      {Name: "shape", Shorthand: "s", ViperKey: "upstream.shape", Description: "Upstream wire shape (gemini, chat-completions, responses)"},
	config.FlagBaseURL:    {Name: "base-url", Shorthand: "u", ViperKey: "upstream.base_url", Description: "Upstream base URL (default depends on shape)"},
	config.FlagPath:       {Name: "path", ViperKey: "upstream.path", Description: "Upstream request path (default depends on shape)"},
	config.FlagModel:      {Name: "model", Shorthand: "m", ViperKey: "upstream.model", Description: "Upstream model name"},
	config.FlagAuthHeader: {Name: "auth-header", ViperKey: "upstream.auth_header", Description: "Header carrying the API key"},
	config.FlagAuthPrefix: {Name: "auth-prefix", ViperKey: "upstream.auth_prefix", Description: "Prefix written before the API key"},
	config.FlagAPIKey:     {Name: "api-key", ViperKey: "upstream.api_key", Description: "Upstream API key"},
	config.FlagSystem:     {Name: "system-prompt", ViperKey: "prompt.system", Description: "System prompt used when no prompt file is present"},
	config.FlagPromptFile: {Name: "prompt-file", ViperKey: "prompt.file", Description: "File whose contents override the system prompt"},
}

var serveFlagKeys = []string{
	config.FlagListen,
	config.FlagKeepAlive,
	config.FlagTimeout,
	config.FlagShape,
	config.FlagBaseURL,
	config.FlagPath,
	config.FlagModel,
	config.FlagAuthHeader,
	config.FlagAuthPrefix,
	config.FlagAPIKey,
	config.FlagSystem,
	config.FlagPromptFile,
}

const serveLongDesc string = `Run the chat relay.

The relay serves a small chat page and POST /api/chat. Each turn is sent to
the configured upstream provider and its streamed answer is relayed back as
OpenAI chat-completions style server-sent events.

Configuration is read from flags, CHATRELAY_* environment variables (and the
legacy PORT, MODEL, OPENAI_API_KEY and SYSTEM_PROMPT), config.toml in the
.chatrelay/ directory, then built-in defaults.

Examples:
  chatrelay serve
  chatrelay serve --shape chat-completions --model gpt-4o-mini
  OPENAI_API_KEY=... chatrelay serve --listen :9000`

const serveShortDesc string = "Run the chat relay"

func NewServeCmd() *cobra.Command {
	return newServeCmd(&ServeCommander{})
}

func newServeCmd(cmder *ServeCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, serveFlags, serveFlagKeys)
			if err := useStoredKey(v, configDir); err != nil {
				return err
			}
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			relayConfig, err := cmder.relayConfig()
			if err != nil {
				return err
			}
			return cmder.run(relayConfig)
		},
	}

	targets := map[string]*string{
		config.FlagListen:     &cmder.listen,
		config.FlagKeepAlive:  &cmder.keepAlive,
		config.FlagTimeout:    &cmder.timeout,
		config.FlagShape:      &cmder.shape,
		config.FlagBaseURL:    &cmder.baseURL,
		config.FlagPath:       &cmder.path,
		config.FlagModel:      &cmder.model,
		config.FlagAuthHeader: &cmder.authHeader,
		config.FlagAuthPrefix: &cmder.authPrefix,
		config.FlagAPIKey:     &cmder.apiKey,
		config.FlagSystem:     &cmder.system,
		config.FlagPromptFile: &cmder.promptFile,
	}
	for _, key := range serveFlagKeys {
		config.AddStringFlag(cmd, serveFlags, key, targets[key])
	}
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

// useStoredKey makes a key saved with "chatrelay auth" the lowest-precedence
// source of upstream.api_key.
func useStoredKey(v *viper.Viper, configDir string) error {
	shape, err := provider.ParseShape(v.GetString("upstream.shape"))
	if err != nil {
		// config.Profile reports the bad shape.
		return nil
	}

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	key, err := mgr.GetKey(credentials.ProviderForShape(shape))
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	if key != "" {
		v.SetDefault("upstream.api_key", key)
	}
	return nil
}

// relayConfig resolves the immutable relay configuration from the viper
// precedence chain.
func (c *ServeCommander) relayConfig() (relay.Config, error) {
	profile, err := config.Profile(c.viper)
	if err != nil {
		return relay.Config{}, fmt.Errorf("resolving upstream: %w", err)
	}

	system, err := config.SystemPrompt(c.viper)
	if err != nil {
		return relay.Config{}, err
	}

	keepAlive, err := config.Duration(c.viper, "relay.keepalive")
	if err != nil {
		return relay.Config{}, err
	}

	timeout, err := config.Duration(c.viper, "relay.timeout")
	if err != nil {
		return relay.Config{}, err
	}

	return relay.Config{
		ListenAddr:   config.ListenAddr(c.viper),
		Profile:      profile,
		SystemPrompt: system,
		KeepAlive:    keepAlive,
		Timeout:      timeout,
	}, nil
}

func (c *ServeCommander) run(cfg relay.Config) error {
	closeLog, err := c.setupLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	r, err := relay.New(cfg, c.logger)
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}
	defer r.Close()

	c.logger.Info("relay configured",
		"system_prompt", utils.Truncate(cfg.SystemPrompt, 60),
		"keepalive", cfg.KeepAlive,
		"version", utils.Version,
	)

	errChan := make(chan error, 1)
	go func() {
		if err := r.Run(); err != nil {
			errChan <- fmt.Errorf("relay error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return nil
	}
}

// setupLogger builds the pretty stdout logger and, with --log-file, tees
// JSON records into that file.
func (c *ServeCommander) setupLogger() (func(), error) {
	pretty := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))
	if c.logFile == "" {
		c.logger = pretty
		return func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	c.logger = logger.Multi(
		pretty,
		logger.New(
			logger.WithDebug(c.debug),
			logger.WithJSON(true),
			logger.WithWriter(f),
			logger.WithAttrs("service", "chatrelay", "version", utils.Version),
		),
	)
	return func() { _ = f.Close() }, nil
}

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/chatrelay/pkg/dotdir"
)

const envPrefix = "CHATRELAY"

// legacyEnv maps config keys to the bare environment variables earlier
// deployments were configured with. The prefixed variable still wins.
var legacyEnv = map[string]string{
	"relay.listen":     "PORT",
	"upstream.model":   "MODEL",
	"upstream.api_key": "OPENAI_API_KEY",
	"prompt.system":    "SYSTEM_PROMPT",
}

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the CHATRELAY_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (CHATRELAY_RELAY_LISTEN, CHATRELAY_UPSTREAM_API_KEY, etc.)
//     and the legacy PORT, MODEL, OPENAI_API_KEY and SYSTEM_PROMPT
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: CHATRELAY_RELAY_LISTEN, CHATRELAY_UPSTREAM_SHAPE, etc.
	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(replacer.Replace(key))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("binding %s: %w", legacy, err)
		}
	}

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Relay
	v.SetDefault("relay.listen", d.Relay.Listen)
	v.SetDefault("relay.keepalive", d.Relay.KeepAlive)
	v.SetDefault("relay.timeout", d.Relay.Timeout)

	// Upstream. Shape specific fields default to empty so Profile can fill
	// them for whichever shape wins the precedence chain.
	v.SetDefault("upstream.shape", d.Upstream.Shape)
	v.SetDefault("upstream.base_url", d.Upstream.BaseURL)
	v.SetDefault("upstream.path", d.Upstream.Path)
	v.SetDefault("upstream.model", d.Upstream.Model)
	v.SetDefault("upstream.auth_header", d.Upstream.AuthHeader)
	v.SetDefault("upstream.auth_prefix", d.Upstream.AuthPrefix)
	v.SetDefault("upstream.api_key", d.Upstream.APIKey)

	// Prompt
	v.SetDefault("prompt.system", d.Prompt.System)
	v.SetDefault("prompt.file", d.Prompt.File)

	// Client
	v.SetDefault("client.relay_target", d.Client.RelayTarget)
}

package config

// Config represents the persistent chatrelay configuration stored as
// config.toml in the .chatrelay/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version  int            `toml:"version"`
	Relay    RelayConfig    `toml:"relay"`
	Upstream UpstreamConfig `toml:"upstream"`
	Prompt   PromptConfig   `toml:"prompt"`
	Client   ClientConfig   `toml:"client"`
}

// RelayConfig holds relay server settings. Durations use Go syntax ("30s").
type RelayConfig struct {
	Listen    string `toml:"listen,omitempty"`
	KeepAlive string `toml:"keepalive,omitempty"`
	Timeout   string `toml:"timeout,omitempty"`
}

// UpstreamConfig describes the upstream provider. Empty base_url, path and
// auth fields fall back to the defaults of the configured shape.
type UpstreamConfig struct {
	Shape      string `toml:"shape,omitempty"`
	BaseURL    string `toml:"base_url,omitempty"`
	Path       string `toml:"path,omitempty"`
	Model      string `toml:"model,omitempty"`
	AuthHeader string `toml:"auth_header,omitempty"`
	AuthPrefix string `toml:"auth_prefix,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
}

// PromptConfig holds the system prompt. A non-empty file overrides text.
type PromptConfig struct {
	System string `toml:"system,omitempty"`
	File   string `toml:"file,omitempty"`
}

// ClientConfig holds settings for "chatrelay chat", which connects to a
// running relay. RelayTarget is a full URL (scheme + host + port).
type ClientConfig struct {
	RelayTarget string `toml:"relay_target,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"relay.listen": {
		get: func(c *Config) string { return c.Relay.Listen },
		set: func(c *Config, v string) error { c.Relay.Listen = v; return nil },
	},
	"relay.keepalive": {
		get: func(c *Config) string { return c.Relay.KeepAlive },
		set: func(c *Config, v string) error {
			if err := validateDuration("relay.keepalive", v); err != nil {
				return err
			}
			c.Relay.KeepAlive = v
			return nil
		},
	},
	"relay.timeout": {
		get: func(c *Config) string { return c.Relay.Timeout },
		set: func(c *Config, v string) error {
			if err := validateDuration("relay.timeout", v); err != nil {
				return err
			}
			c.Relay.Timeout = v
			return nil
		},
	},
	"upstream.shape": {
		get: func(c *Config) string { return c.Upstream.Shape },
		set: func(c *Config, v string) error {
			shape, err := parseShape(v)
			if err != nil {
				return err
			}
			c.Upstream.Shape = string(shape)
			return nil
		},
	},
	"upstream.base_url": {
		get: func(c *Config) string { return c.Upstream.BaseURL },
		set: func(c *Config, v string) error { c.Upstream.BaseURL = v; return nil },
	},
	"upstream.path": {
		get: func(c *Config) string { return c.Upstream.Path },
		set: func(c *Config, v string) error { c.Upstream.Path = v; return nil },
	},
	"upstream.model": {
		get: func(c *Config) string { return c.Upstream.Model },
		set: func(c *Config, v string) error { c.Upstream.Model = v; return nil },
	},
	"upstream.auth_header": {
		get: func(c *Config) string { return c.Upstream.AuthHeader },
		set: func(c *Config, v string) error { c.Upstream.AuthHeader = v; return nil },
	},
	"upstream.auth_prefix": {
		get: func(c *Config) string { return c.Upstream.AuthPrefix },
		set: func(c *Config, v string) error { c.Upstream.AuthPrefix = v; return nil },
	},
	"upstream.api_key": {
		get: func(c *Config) string { return c.Upstream.APIKey },
		set: func(c *Config, v string) error { c.Upstream.APIKey = v; return nil },
	},
	"prompt.system": {
		get: func(c *Config) string { return c.Prompt.System },
		set: func(c *Config, v string) error { c.Prompt.System = v; return nil },
	},
	"prompt.file": {
		get: func(c *Config) string { return c.Prompt.File },
		set: func(c *Config, v string) error { c.Prompt.File = v; return nil },
	},
	"client.relay_target": {
		get: func(c *Config) string { return c.Client.RelayTarget },
		set: func(c *Config, v string) error { c.Client.RelayTarget = v; return nil },
	},
}

package config

const (
	defaultListen    = ":8787"
	defaultKeepAlive = "30s"
	defaultTimeout   = "5m"

	defaultShape        = "gemini"
	defaultModel        = "gemini-2.5-pro"
	defaultSystemPrompt = "You are a concise assistant."
	defaultPromptFile   = "SOUL.md"

	defaultClientRelayTarget = "http://localhost:8787"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values. Shape specific
// upstream fields are left empty and resolved by Profile.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Relay: RelayConfig{
			Listen:    defaultListen,
			KeepAlive: defaultKeepAlive,
			Timeout:   defaultTimeout,
		},
		Upstream: UpstreamConfig{
			Shape: defaultShape,
			Model: defaultModel,
		},
		Prompt: PromptConfig{
			System: defaultSystemPrompt,
			File:   defaultPromptFile,
		},
		Client: ClientConfig{
			RelayTarget: defaultClientRelayTarget,
		},
	}
}

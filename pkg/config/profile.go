package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/llm/provider"
)

// ErrMissingAPIKey is returned by Profile when no upstream API key is
// configured. The relay cannot start without one.
var ErrMissingAPIKey = errors.New("upstream API key is required (set CHATRELAY_UPSTREAM_API_KEY or OPENAI_API_KEY, or run chatrelay auth)")

// ShapeDefaults returns the upstream endpoint and auth defaults for a wire
// shape.
func ShapeDefaults(shape llm.Shape) UpstreamConfig {
	switch shape {
	case llm.ShapeGemini:
		return UpstreamConfig{
			Shape:   string(shape),
			BaseURL: "https://generativelanguage.googleapis.com",
			Path:    "/v1beta/models/" + llm.ModelPlaceholder + ":streamGenerateContent",
		}
	case llm.ShapeResponses:
		return UpstreamConfig{
			Shape:      string(shape),
			BaseURL:    "https://api.openai.com",
			Path:       "/v1/responses",
			AuthHeader: "Authorization",
			AuthPrefix: "Bearer ",
		}
	default:
		return UpstreamConfig{
			Shape:      string(llm.ShapeChatCompletions),
			BaseURL:    "https://api.openai.com",
			Path:       "/v1/chat/completions",
			AuthHeader: "Authorization",
			AuthPrefix: "Bearer ",
		}
	}
}

// Profile resolves the upstream provider profile from v. Endpoint and auth
// fields left empty take the defaults of the configured shape.
func Profile(v *viper.Viper) (llm.Profile, error) {
	shape, err := parseShape(v.GetString("upstream.shape"))
	if err != nil {
		return llm.Profile{}, err
	}

	defaults := ShapeDefaults(shape)
	p := llm.Profile{
		Shape:      shape,
		BaseURL:    firstNonEmpty(v.GetString("upstream.base_url"), defaults.BaseURL),
		Path:       firstNonEmpty(v.GetString("upstream.path"), defaults.Path),
		Model:      v.GetString("upstream.model"),
		AuthHeader: firstNonEmpty(v.GetString("upstream.auth_header"), defaults.AuthHeader),
		AuthPrefix: firstNonEmpty(v.GetString("upstream.auth_prefix"), defaults.AuthPrefix),
		APIKey:     strings.TrimSpace(v.GetString("upstream.api_key")),
	}

	if p.APIKey == "" {
		return llm.Profile{}, ErrMissingAPIKey
	}
	if p.Model == "" {
		return llm.Profile{}, errors.New("upstream model is required")
	}

	return p, nil
}

// SystemPrompt returns the trimmed contents of prompt.file when it exists and
// is not blank, and prompt.system otherwise.
func SystemPrompt(v *viper.Viper) (string, error) {
	if path := v.GetString("prompt.file"); path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if prompt := strings.TrimSpace(string(data)); prompt != "" {
				return prompt, nil
			}
		case !errors.Is(err, os.ErrNotExist):
			return "", fmt.Errorf("reading system prompt file: %w", err)
		}
	}
	return v.GetString("prompt.system"), nil
}

// ListenAddr returns relay.listen as a listen address. A bare port number,
// as the legacy PORT variable carries, listens on all interfaces.
func ListenAddr(v *viper.Viper) string {
	listen := strings.TrimSpace(v.GetString("relay.listen"))
	if listen != "" && !strings.Contains(listen, ":") {
		return ":" + listen
	}
	return listen
}

// Duration reads a duration key such as relay.keepalive.
func Duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid value for %s: must not be negative", key)
	}
	return d, nil
}

func parseShape(name string) (llm.Shape, error) {
	shape, err := provider.ParseShape(name)
	if err != nil {
		return "", fmt.Errorf("invalid value for upstream.shape: %w", err)
	}
	return shape, nil
}

func validateDuration(key, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if d < 0 {
		return fmt.Errorf("invalid value for %s: must not be negative", key)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

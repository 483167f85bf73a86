// Package gemini implements Google's streamGenerateContent wire shape.
//
// Gemini does not speak the downstream chat completions format, so the relay
// translates its frames using ExtractDelta. The API key travels in the query
// string and alt=sse forces event-stream framing.
package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

const (
	roleUser  = "user"
	roleModel = "model"

	deltaPath = "candidates.0.content.parts.0.text"
)

var errInvalidPayload = errors.New("invalid gemini payload")

// Provider implements the gemini wire shape.
type Provider struct{}

// New returns the gemini provider.
func New() *Provider { return &Provider{} }

func (p *Provider) Shape() llm.Shape {
	return llm.ShapeGemini
}

// PassThrough is false: gemini frames are re-encoded.
func (p *Provider) PassThrough() bool {
	return false
}

// Compose maps a leading system message onto systemInstruction and every
// other message onto a contents entry. Assistant turns become "model"; all
// other roles, including later system messages, become "user".
func (p *Provider) Compose(messages []llm.Message, profile llm.Profile) (*llm.UpstreamRequest, error) {
	req := geminiRequest{
		Contents: make([]geminiContent, 0, len(messages)),
	}

	rest := messages
	if len(messages) > 0 && messages[0].Role == llm.RoleSystem {
		req.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: messages[0].Content.String()}},
		}
		rest = messages[1:]
	}

	for _, msg := range rest {
		role := roleUser
		if msg.Role == llm.RoleAssistant {
			role = roleModel
		}
		req.Contents = append(req.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: msg.Content.String()}},
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding gemini request: %w", err)
	}

	endpoint, err := url.Parse(profile.Endpoint())
	if err != nil {
		return nil, fmt.Errorf("parsing gemini endpoint: %w", err)
	}
	q := endpoint.Query()
	if profile.APIKey != "" {
		q.Set("key", profile.APIKey)
	}
	q.Set("alt", "sse")
	endpoint.RawQuery = q.Encode()

	return llm.NewUpstreamRequest(endpoint.String(), body), nil
}

// ExtractDelta reads candidates[0].content.parts[0].text.
func (p *Provider) ExtractDelta(payload []byte) (string, error) {
	if !gjson.ValidBytes(payload) {
		return "", errInvalidPayload
	}

	text := gjson.GetBytes(payload, deltaPath)
	if text.Type != gjson.String {
		return "", nil
	}
	return text.String(), nil
}

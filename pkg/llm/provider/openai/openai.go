// Package openai implements the OpenAI chat completions wire shape.
// Its event stream is already in the downstream format, so the relay
// forwards it untouched.
package openai

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// errInvalidPayload is returned by ExtractDelta for non-JSON frames.
var errInvalidPayload = errors.New("invalid chat completions payload")

// Provider composes chat completions requests and forwards their streams verbatim.
type Provider struct{}

// New returns the chat completions provider.
func New() *Provider { return &Provider{} }

func (o *Provider) Shape() llm.Shape {
	return llm.ShapeChatCompletions
}

func (o *Provider) PassThrough() bool {
	return true
}

func (o *Provider) Compose(messages []llm.Message, profile llm.Profile) (*llm.UpstreamRequest, error) {
	req := chatRequest{
		Model:    profile.Model,
		Messages: make([]chatMessage, 0, len(messages)),
		Stream:   true,
	}

	for _, msg := range messages {
		blocks := msg.Content.Blocks()
		if !msg.Content.IsBlocks() {
			blocks = []llm.Block{llm.NewTextBlock(msg.Content.String())}
		}
		req.Messages = append(req.Messages, chatMessage{Role: msg.Role, Content: blocks})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding chat completions request: %w", err)
	}

	out := llm.NewUpstreamRequest(profile.Endpoint(), body)
	profile.SetAuth(out.Header)
	return out, nil
}

// ExtractDelta reads choices[0].delta.content.
func (o *Provider) ExtractDelta(payload []byte) (string, error) {
	if !gjson.ValidBytes(payload) {
		return "", errInvalidPayload
	}

	content := gjson.GetBytes(payload, "choices.0.delta.content")
	if content.Type != gjson.String {
		return "", nil
	}
	return content.String(), nil
}

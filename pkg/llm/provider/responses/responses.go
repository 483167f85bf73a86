// Package responses implements the OpenAI responses wire shape.
//
// It differs from chat completions in exactly one composition rule: text
// content stays a plain string instead of being wrapped in a block list.
package responses

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

const outputTextDelta = "response.output_text.delta"

var errInvalidPayload = errors.New("invalid responses payload")

// responsesRequest is the streaming responses request body. Message content
// marshals as a string for text and as an array for blocks.
type responsesRequest struct {
	Model  string        `json:"model"`
	Input  []llm.Message `json:"input"`
	Stream bool          `json:"stream"`
}

type Provider struct{}

func New() *Provider { return &Provider{} }

func (p *Provider) Shape() llm.Shape {
	return llm.ShapeResponses
}

func (p *Provider) PassThrough() bool {
	return true
}

func (p *Provider) Compose(messages []llm.Message, profile llm.Profile) (*llm.UpstreamRequest, error) {
	input := messages
	if input == nil {
		input = []llm.Message{}
	}

	body, err := json.Marshal(responsesRequest{
		Model:  profile.Model,
		Input:  input,
		Stream: true,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding responses request: %w", err)
	}

	out := llm.NewUpstreamRequest(profile.Endpoint(), body)
	profile.SetAuth(out.Header)
	return out, nil
}

// ExtractDelta reads the delta of response.output_text.delta events.
func (p *Provider) ExtractDelta(payload []byte) (string, error) {
	if !gjson.ValidBytes(payload) {
		return "", errInvalidPayload
	}

	event := gjson.ParseBytes(payload)
	if event.Get("type").String() != outputTextDelta {
		return "", nil
	}

	delta := event.Get("delta")
	if delta.Type != gjson.String {
		return "", nil
	}
	return delta.String(), nil
}

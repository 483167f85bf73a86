package provider

import (
	"errors"
	"fmt"
	"strings"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/llm/provider/gemini"
	"github.com/papercomputeco/chatrelay/pkg/llm/provider/openai"
	"github.com/papercomputeco/chatrelay/pkg/llm/provider/responses"
)

// ErrUnknownShape is returned for a wire shape outside SupportedShapes.
var ErrUnknownShape = errors.New("unknown wire shape")

var (
	_ Provider = (*gemini.Provider)(nil)
	_ Provider = (*openai.Provider)(nil)
	_ Provider = (*responses.Provider)(nil)
)

// SupportedShapes returns every wire shape New accepts.
func SupportedShapes() []llm.Shape {
	return []llm.Shape{llm.ShapeGemini, llm.ShapeChatCompletions, llm.ShapeResponses}
}

// ParseShape normalizes a configured shape name. "openai" is accepted as an
// alias for chat-completions.
func ParseShape(name string) (llm.Shape, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case string(llm.ShapeGemini):
		return llm.ShapeGemini, nil
	case string(llm.ShapeChatCompletions), "openai", "chat":
		return llm.ShapeChatCompletions, nil
	case string(llm.ShapeResponses):
		return llm.ShapeResponses, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: %v)", ErrUnknownShape, name, SupportedShapes())
	}
}

// New creates the Provider for the given wire shape.
func New(shape llm.Shape) (Provider, error) {
	switch shape {
	case llm.ShapeGemini:
		return gemini.New(), nil
	case llm.ShapeChatCompletions:
		return openai.New(), nil
	case llm.ShapeResponses:
		return responses.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: %v)", ErrUnknownShape, shape, SupportedShapes())
	}
}

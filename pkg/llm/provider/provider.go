// Package provider resolves a wire shape into the Provider that composes
// upstream requests for it and reads its streamed frames.
package provider

import (
	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// Provider defines one upstream wire shape.
type Provider interface {
	// Shape returns the wire shape this provider speaks.
	Shape() llm.Shape

	// Compose builds the upstream request for a canonical conversation.
	// It performs no I/O.
	Compose(messages []llm.Message, profile llm.Profile) (*llm.UpstreamRequest, error)

	// PassThrough reports whether the upstream event stream is already in
	// the downstream format and can be forwarded byte-for-byte.
	PassThrough() bool

	// ExtractDelta returns the text fragment carried by one upstream SSE
	// data payload. An empty string with a nil error means the frame carries
	// no text. An error means the payload is not valid JSON.
	ExtractDelta(payload []byte) (string, error)
}

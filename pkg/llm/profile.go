package llm

import (
	"fmt"
	"net/http"
	"strings"
)

// Shape is the upstream wire format a provider speaks.
type Shape string

const (
	// ShapeGemini is Google's generateContent streaming API.
	ShapeGemini Shape = "gemini"

	// ShapeChatCompletions is the OpenAI chat completions API.
	ShapeChatCompletions Shape = "chat-completions"

	// ShapeResponses is the OpenAI responses API.
	ShapeResponses Shape = "responses"
)

// ModelPlaceholder is substituted with Profile.Model in Profile.Path.
const ModelPlaceholder = "{model}"

// Profile describes how to reach one upstream provider. It is built once at
// startup and never mutated.
type Profile struct {
	Shape      Shape
	BaseURL    string
	Path       string
	Model      string
	AuthHeader string
	AuthPrefix string
	APIKey     string
}

// Endpoint joins BaseURL and Path, substituting the model placeholder.
func (p Profile) Endpoint() string {
	path := strings.ReplaceAll(p.Path, ModelPlaceholder, p.Model)
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(p.BaseURL, "/") + path
}

// SetAuth writes the profile's auth header onto h. Nothing is written when
// no header name or key is configured.
func (p Profile) SetAuth(h http.Header) {
	if p.AuthHeader == "" || p.APIKey == "" {
		return
	}
	h.Set(p.AuthHeader, p.AuthPrefix+p.APIKey)
}

// String renders the profile without its credential.
func (p Profile) String() string {
	return fmt.Sprintf("%s %s (model %s)", p.Shape, p.Endpoint(), p.Model)
}

// UpstreamRequest is the fully composed HTTP request for one chat turn.
type UpstreamRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// NewUpstreamRequest returns a JSON POST request with an event-stream Accept
// header.
func NewUpstreamRequest(url string, body []byte) *UpstreamRequest {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "text/event-stream")
	return &UpstreamRequest{
		Method: http.MethodPost,
		URL:    url,
		Header: h,
		Body:   body,
	}
}

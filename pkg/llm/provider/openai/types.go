package openai

import "github.com/papercomputeco/chatrelay/pkg/llm"

// chatRequest is the streaming chat completions request body.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// chatMessage always carries content as a block array; text content is
// wrapped in a single text block.
type chatMessage struct {
	Role    llm.Role    `json:"role"`
	Content []llm.Block `json:"content"`
}

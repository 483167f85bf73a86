// Package llm holds the canonical, provider-agnostic conversation model that
// flows from the inbound chat request to the upstream composers.
package llm

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Role is the speaker of a canonical message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ParseRole maps a client-supplied role onto a Role. Matching is
// case-insensitive and anything that is not assistant or system is a user
// turn.
func ParseRole(role string) Role {
	switch strings.ToLower(role) {
	case string(RoleAssistant):
		return RoleAssistant
	case string(RoleSystem):
		return RoleSystem
	default:
		return RoleUser
	}
}

// Message represents a single message in a conversation.
type Message struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

// NewTextMessage creates a message with plain text content.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: TextContent(text)}
}

// Content is either plain text or an ordered list of content blocks.
// The zero value is empty text.
type Content struct {
	text     string
	blocks   []Block
	isBlocks bool
}

// TextContent returns Content holding plain text.
func TextContent(text string) Content {
	return Content{text: text}
}

// BlockContent returns Content holding the given blocks in order.
func BlockContent(blocks ...Block) Content {
	if blocks == nil {
		blocks = []Block{}
	}
	return Content{blocks: blocks, isBlocks: true}
}

// IsBlocks reports whether the content is a block list rather than text.
func (c Content) IsBlocks() bool {
	return c.isBlocks
}

// Blocks returns the content blocks, or nil for text content.
func (c Content) Blocks() []Block {
	return c.blocks
}

// String returns the text of the content. For block content this is the
// concatenation of every text block; other block types contribute nothing.
func (c Content) String() string {
	if !c.isBlocks {
		return c.text
	}

	var sb strings.Builder
	for _, b := range c.blocks {
		if text, ok := b.Text(); ok {
			sb.WriteString(text)
		}
	}
	return sb.String()
}

// MarshalJSON encodes text content as a JSON string and block content as a
// JSON array.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.isBlocks {
		return json.Marshal(c.blocks)
	}
	return json.Marshal(c.text)
}

// UnmarshalJSON accepts a JSON string, array, or null.
func (c *Content) UnmarshalJSON(data []byte) error {
	*c = normalizeContent(gjson.ParseBytes(data))
	return nil
}

// Block is a single typed content item. Only "text" blocks are interpreted;
// everything else is carried through byte-for-byte.
type Block struct {
	raw json.RawMessage
}

// NewTextBlock returns a {"type":"text","text":...} block.
func NewTextBlock(text string) Block {
	raw, _ := json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{Type: "text", Text: text})
	return Block{raw: raw}
}

// Type returns the block's "type" field, or "" when the block is not an
// object or has no string type.
func (b Block) Type() string {
	t := gjson.GetBytes(b.raw, "type")
	if t.Type != gjson.String {
		return ""
	}
	return t.String()
}

// Text returns the text of a "text" block.
func (b Block) Text() (string, bool) {
	if b.Type() != "text" {
		return "", false
	}
	t := gjson.GetBytes(b.raw, "text")
	if t.Type != gjson.String {
		return "", false
	}
	return t.String(), true
}

// Raw returns the block's original JSON encoding.
func (b Block) Raw() json.RawMessage {
	return b.raw
}

func (b Block) MarshalJSON() ([]byte, error) {
	if len(b.raw) == 0 {
		return []byte("null"), nil
	}
	return b.raw, nil
}

func (b *Block) UnmarshalJSON(data []byte) error {
	b.raw = bytes.Clone(data)
	return nil
}

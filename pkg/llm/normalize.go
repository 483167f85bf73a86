package llm

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"
)

// DecodeHistory splits a raw "history" value into its entries. Anything that
// is not a JSON array yields an empty history.
func DecodeHistory(raw json.RawMessage) []json.RawMessage {
	if len(raw) == 0 || !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsArray() {
		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	return entries
}

// Normalize converts client-supplied history into canonical messages.
//
// Entries that are not JSON objects are dropped. Every other entry produces
// exactly one message: roles are coerced with ParseRole and content shapes
// are coerced rather than rejected. A non-empty systemPrompt is always
// prepended as a system message.
func Normalize(history []json.RawMessage, systemPrompt string) []Message {
	messages := make([]Message, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, NewTextMessage(RoleSystem, systemPrompt))
	}

	for _, raw := range history {
		msg, ok := normalizeEntry(raw)
		if !ok {
			continue
		}
		messages = append(messages, msg)
	}

	return messages
}

func normalizeEntry(raw json.RawMessage) (Message, bool) {
	if !gjson.ValidBytes(raw) {
		return Message{}, false
	}

	entry := gjson.ParseBytes(raw)
	if !entry.IsObject() {
		return Message{}, false
	}

	role := RoleUser
	if r := entry.Get("role"); r.Type == gjson.String {
		role = ParseRole(r.String())
	}

	return Message{
		Role:    role,
		Content: normalizeContent(entry.Get("content")),
	}, true
}

func normalizeContent(v gjson.Result) Content {
	switch {
	case !v.Exists() || v.Type == gjson.Null:
		return TextContent("")
	case v.IsArray():
		blocks := []Block{}
		v.ForEach(func(_, item gjson.Result) bool {
			blocks = append(blocks, Block{raw: json.RawMessage(item.Raw)})
			return true
		})
		return BlockContent(blocks...)
	case v.Type == gjson.String:
		return TextContent(v.String())
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(v.Raw)); err != nil {
			return TextContent(v.String())
		}
		return TextContent(buf.String())
	}
}

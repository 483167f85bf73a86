package relay

import (
	"fmt"
	"log/slog"

	"github.com/tidwall/sjson"

	"github.com/papercomputeco/chatrelay/pkg/llm/provider"
	"github.com/papercomputeco/chatrelay/pkg/sse"
)

// chunkTemplate is the downstream chat completions chunk every translated
// delta is written into.
const chunkTemplate = `{"id":"","object":"chat.completion.chunk","created":0,"model":"","choices":[{"index":0,"delta":{"content":""},"finish_reason":null}]}`

// translator re-frames a non pass-through upstream stream into chat
// completions chunks. Upstream bytes go through a line buffer so a frame
// split across reads, even inside a multi-byte character, is only parsed
// once complete.
type translator struct {
	prov    provider.Provider
	id      string
	model   string
	created int64
	lines   sse.LineBuffer
	logger  *slog.Logger

	deltas  int
	skipped int
}

func newTranslator(prov provider.Provider, id, model string, created int64, logger *slog.Logger) *translator {
	return &translator{
		prov:    prov,
		id:      id,
		model:   model,
		created: created,
		logger:  logger,
	}
}

// Feed consumes one upstream chunk and returns the downstream payloads it
// completed, in order.
func (t *translator) Feed(chunk []byte) [][]byte {
	var out [][]byte
	for _, line := range t.lines.Feed(chunk) {
		if payload, ok := t.line(line); ok {
			out = append(out, payload)
		}
	}
	return out
}

// Flush handles a final line the upstream did not terminate.
func (t *translator) Flush() [][]byte {
	line, ok := t.lines.Flush()
	if !ok {
		return nil
	}
	if payload, ok := t.line(line); ok {
		return [][]byte{payload}
	}
	return nil
}

func (t *translator) line(line string) ([]byte, bool) {
	data, ok := sse.DataLine(line)
	if !ok || data == "" || data == sse.Done {
		return nil, false
	}

	text, err := t.prov.ExtractDelta([]byte(data))
	if err != nil {
		t.skipped++
		t.logger.Warn("skipping malformed upstream frame",
			"shape", t.prov.Shape(),
			"error", err,
		)
		return nil, false
	}
	if text == "" {
		return nil, false
	}

	payload, err := t.envelope(text)
	if err != nil {
		t.skipped++
		t.logger.Warn("could not build downstream chunk", "error", err)
		return nil, false
	}

	t.deltas++
	return payload, true
}

func (t *translator) envelope(text string) ([]byte, error) {
	out := []byte(chunkTemplate)

	var err error
	for _, set := range []struct {
		path  string
		value any
	}{
		{"id", t.id},
		{"created", t.created},
		{"model", t.model},
		{"choices.0.delta.content", text},
	} {
		out, err = sjson.SetBytes(out, set.path, set.value)
		if err != nil {
			return nil, fmt.Errorf("setting %s: %w", set.path, err)
		}
	}
	return out, nil
}

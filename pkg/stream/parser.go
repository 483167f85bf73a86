// Package stream is the consumer side of the relay: it turns the relay's SSE
// byte stream back into text deltas and accumulates them into a transcript.
package stream

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/chatrelay/pkg/sse"
	"github.com/papercomputeco/chatrelay/pkg/utils"
)

// defaultErrorMessage is reported for an error event without a message.
const defaultErrorMessage = "request failed"

// Kind classifies a parser Event.
type Kind int

const (
	// KindDelta carries a text fragment in Event.Text.
	KindDelta Kind = iota

	// KindDone marks normal completion of the stream.
	KindDone

	// KindError marks a terminal failure described by Event.Err.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindDelta:
		return "delta"
	case KindDone:
		return "done"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one decoded relay event.
type Event struct {
	Kind Kind
	Text string
	Err  string
}

// Parser decodes a relay stream fed in arbitrary chunks. Once it reports an
// error it is terminal and ignores everything that follows.
type Parser struct {
	decoder *sse.Decoder
	failed  bool
	closed  bool
}

// NewParser returns a Parser ready for the first chunk.
func NewParser() *Parser {
	return &Parser{decoder: sse.NewDecoder()}
}

// Feed consumes one chunk and returns the events it completed.
func (p *Parser) Feed(chunk []byte) []Event {
	if p.failed || p.closed {
		return nil
	}
	return p.handle(p.decoder.Feed(chunk))
}

// Close ends the stream. Residual data is treated as one last event, and a
// KindDone event is returned unless the stream already failed.
func (p *Parser) Close() []Event {
	if p.closed {
		return nil
	}
	p.closed = true

	if p.failed {
		return nil
	}

	events := p.handle(p.decoder.Flush())
	if p.failed {
		return events
	}
	return append(events, Event{Kind: KindDone})
}

// Failed reports whether the parser reached its error state.
func (p *Parser) Failed() bool {
	return p.failed
}

func (p *Parser) handle(frames []sse.Event) []Event {
	var events []Event
	for _, frame := range frames {
		ev, ok := p.decode(frame)
		if !ok {
			continue
		}
		events = append(events, ev)
		if ev.Kind == KindError {
			p.failed = true
			break
		}
	}
	return events
}

func (p *Parser) decode(frame sse.Event) (Event, bool) {
	payload := strings.TrimSpace(frame.Data)
	if payload == "" || payload == sse.Done {
		return Event{}, false
	}

	if !gjson.Valid(payload) {
		return Event{Kind: KindError, Err: "malformed event: " + utils.Truncate(payload, 80)}, true
	}

	event := gjson.Parse(payload)
	if errField := event.Get("error"); errField.Exists() {
		return Event{Kind: KindError, Err: errorMessage(errField)}, true
	}

	text := ExtractDelta(event)
	if text == "" {
		return Event{}, false
	}
	return Event{Kind: KindDelta, Text: text}, true
}

// errorMessage reads error.message, then error.body, then a plain string
// error value.
func errorMessage(errField gjson.Result) string {
	if errField.Type == gjson.String && errField.String() != "" {
		return errField.String()
	}
	for _, path := range []string{"message", "body"} {
		if v := errField.Get(path); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return defaultErrorMessage
}

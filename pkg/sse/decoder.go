package sse

import (
	"strings"
)

// Decoder incrementally parses SSE events from a byte stream that may be
// split at any point, including in the middle of a line or of a multi-byte
// character.
//
// ┌──────────────┐   ┌────────────┐   ┌─────────┐
// │ Feed(chunk)  │──▶│ LineBuffer │──▶│ []Event │
// └──────────────┘   └────────────┘   └─────────┘
//
// Feed returns the events completed by a chunk; Flush returns whatever was
// left once the source is exhausted.
type Decoder struct {
	lines LineBuffer

	// current accumulates fields for the event being built.
	current Event
	hasData bool
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed consumes chunk and returns the events it completed, in stream order.
func (d *Decoder) Feed(chunk []byte) []Event {
	var events []Event
	for _, line := range d.lines.Feed(chunk) {
		if ev, ok := d.processLine(line); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Flush ends the stream. A trailing partial line is processed and an
// in-progress event (stream ended without a blank line) is returned.
func (d *Decoder) Flush() []Event {
	var events []Event
	if line, ok := d.lines.Flush(); ok {
		if ev, ok := d.processLine(line); ok {
			events = append(events, ev)
		}
	}

	if d.hasData {
		events = append(events, d.current)
		d.reset()
	}
	return events
}

// AtBoundary reports whether everything fed so far ends between two events:
// no partial line is buffered and no event is in progress. A frame written
// to the same stream at this point cannot split an upstream event.
func (d *Decoder) AtBoundary() bool {
	return d.lines.Len() == 0 && !d.hasData
}

// processLine handles one complete line and returns an event when the line
// terminates one.
func (d *Decoder) processLine(line string) (Event, bool) {
	// A blank line signals the end of the current event.
	if line == "" {
		if !d.hasData {
			// Leading blank lines or keep-alive padding.
			return Event{}, false
		}
		ev := d.current
		d.reset()
		return ev, true
	}

	// Lines starting with ':' are comments.
	if strings.HasPrefix(line, ":") {
		return Event{}, false
	}

	d.parseLine(line)
	return Event{}, false
}

// parseLine accumulates a single "field:value" line into the current event.
// The first space after the colon is optional and stripped if present.
func (d *Decoder) parseLine(line string) {
	var field, value string

	if before, after, ok := strings.Cut(line, ":"); ok {
		field = before
		value = strings.TrimPrefix(after, " ")
	} else {
		// Line with no colon: the entire line is the field name with
		// an empty value.
		field = line
	}

	switch field {
	case "data":
		if d.hasData && d.current.Data != "" {
			d.current.Data += "\n"
		}
		d.current.Data += value
		d.hasData = true
	case "event":
		d.current.Type = value
		d.hasData = true
	case "id":
		d.current.ID = value
		d.hasData = true
	default:
		// "retry" and unknown fields are ignored.
	}
}

func (d *Decoder) reset() {
	d.current = Event{}
	d.hasData = false
}

// DataLine reports whether line is an SSE data line and returns its payload
// with surrounding whitespace removed.
func DataLine(line string) (string, bool) {
	payload, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(payload), true
}

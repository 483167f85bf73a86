// Package sse provides the small set of SSE (Server-Sent Events) pieces the
// relay needs: an incremental Decoder that rebuilds events from arbitrarily
// split byte chunks, a LineBuffer for line-oriented translation, and a Writer
// that frames data, comments and the terminal sentinel for a downstream
// client.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Done is the terminal sentinel payload written as the final data frame.
const Done = "[DONE]"

// Event represents a single parsed SSE event, delimited by a blank line
// in the byte stream.
type Event struct {
	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type per the SSE spec.
	Type string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n".
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}

// IsDone reports whether the event carries the terminal sentinel.
func (e Event) IsDone() bool {
	return e.Data == Done
}

package stream

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// Placeholder is the content of an assistant turn that finished without any
// text.
const Placeholder = "(no response content)"

// errorPrefix marks an assistant entry whose turn failed.
const errorPrefix = "[error] "

// Entry is one message in a Transcript.
type Entry struct {
	ID        uuid.UUID
	Message   llm.Message
	Streaming bool
	Err       bool
	CreatedAt time.Time
}

// Transcript accumulates a conversation on the client side. Each turn is a
// user entry followed by one assistant entry that grows with every delta and
// is frozen by the first terminal event.
type Transcript struct {
	entries []Entry
	running strings.Builder
	now     func() time.Time
}

// NewTranscript returns an empty Transcript.
func NewTranscript() *Transcript {
	return &Transcript{now: time.Now}
}

// Begin starts a turn: it records the user text and opens the assistant
// entry that subsequent events update.
func (t *Transcript) Begin(text string) {
	t.running.Reset()
	t.entries = append(t.entries,
		t.newEntry(llm.NewTextMessage(llm.RoleUser, text), false),
		t.newEntry(llm.NewTextMessage(llm.RoleAssistant, ""), true),
	)
}

// Apply folds one parser event into the open assistant entry. It reports
// whether the event changed the transcript; events arriving after the turn
// ended are ignored.
func (t *Transcript) Apply(ev Event) bool {
	cur := t.current()
	if cur == nil {
		return false
	}

	switch ev.Kind {
	case KindDelta:
		if ev.Text == "" {
			return false
		}
		t.running.WriteString(ev.Text)
		cur.Message.Content = llm.TextContent(t.running.String())
	case KindDone:
		text := t.running.String()
		if text == "" {
			text = Placeholder
		}
		cur.Message.Content = llm.TextContent(text)
		cur.Streaming = false
	case KindError:
		msg := ev.Err
		if msg == "" {
			msg = defaultErrorMessage
		}
		cur.Message.Content = llm.TextContent(errorPrefix + msg)
		cur.Err = true
		cur.Streaming = false
	default:
		return false
	}
	return true
}

// Running returns the assistant text accumulated so far in the open turn.
func (t *Transcript) Running() string {
	return t.running.String()
}

// Entries returns a copy of every entry in order.
func (t *Transcript) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Last returns the most recent entry.
func (t *Transcript) Last() (Entry, bool) {
	if len(t.entries) == 0 {
		return Entry{}, false
	}
	return t.entries[len(t.entries)-1], true
}

// History returns the messages to send with the next request. Failed
// assistant entries and entries still streaming are left out.
func (t *Transcript) History() []llm.Message {
	out := make([]llm.Message, 0, len(t.entries))
	for _, e := range t.entries {
		if e.Err || e.Streaming {
			continue
		}
		out = append(out, e.Message)
	}
	return out
}

// Reset drops every entry.
func (t *Transcript) Reset() {
	t.entries = nil
	t.running.Reset()
}

// current returns the open assistant entry, or nil when no turn is open.
func (t *Transcript) current() *Entry {
	if len(t.entries) == 0 {
		return nil
	}
	last := &t.entries[len(t.entries)-1]
	if !last.Streaming {
		return nil
	}
	return last
}

func (t *Transcript) newEntry(msg llm.Message, streaming bool) Entry {
	return Entry{
		ID:        uuid.New(),
		Message:   msg,
		Streaming: streaming,
		CreatedAt: t.now(),
	}
}

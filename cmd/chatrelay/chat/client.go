package chatcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/stream"
	"github.com/papercomputeco/chatrelay/pkg/utils"
)

// chatRequest is the body of POST /api/chat.
type chatRequest struct {
	Text    string        `json:"text"`
	History []llm.Message `json:"history"`
}

// client sends turns to a running relay and folds the streamed answers into
// a transcript.
type client struct {
	target     string
	httpClient *http.Client
	transcript *stream.Transcript
	logger     *slog.Logger
}

func newClient(target string, logger *slog.Logger) *client {
	return &client{
		target:     strings.TrimRight(target, "/"),
		httpClient: &http.Client{},
		transcript: stream.NewTranscript(),
		logger:     logger,
	}
}

// Send runs one turn. onDelta is called with every text fragment as it
// arrives. The finished assistant entry is returned; failures are recorded
// on the entry rather than returned, except for a cancelled ctx.
func (c *client) Send(ctx context.Context, text string, onDelta func(string)) (stream.Entry, error) {
	// History includes the new user message; the relay only falls back to
	// text when history is empty.
	c.transcript.Begin(text)
	history := c.transcript.History()

	body, err := json.Marshal(chatRequest{Text: text, History: history})
	if err != nil {
		return c.fail(fmt.Errorf("marshaling request: %w", err))
	}

	c.logger.Debug("sending chat request",
		"relay_target", c.target,
		"history_count", len(history),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.target+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return c.fail(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("User-Agent", utils.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return c.fail(ctx.Err())
		}
		return c.fail(fmt.Errorf("sending request to relay: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return c.fail(fmt.Errorf("relay returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}

	err = stream.Consume(ctx, resp.Body, func(ev stream.Event) {
		if c.transcript.Apply(ev) && ev.Kind == stream.KindDelta && onDelta != nil {
			onDelta(ev.Text)
		}
	})
	if err != nil {
		return c.fail(err)
	}

	entry, _ := c.transcript.Last()
	return entry, nil
}

// Reset starts a new conversation.
func (c *client) Reset() {
	c.transcript.Reset()
}

// fail closes the open turn with err and returns the resulting entry. A
// cancelled context is also returned to the caller.
func (c *client) fail(err error) (stream.Entry, error) {
	c.transcript.Apply(stream.Event{Kind: stream.KindError, Err: err.Error()})
	entry, _ := c.transcript.Last()

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return entry, err
	}
	return entry, nil
}

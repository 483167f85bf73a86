package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/sse"
	"github.com/papercomputeco/chatrelay/pkg/utils"
)

const (
	readSize = 32 * 1024

	// maxErrorBody caps how much of a failed upstream response is relayed.
	maxErrorBody = 64 * 1024
)

// ErrClientGone is returned by Stream when the downstream writer fails.
var ErrClientGone = errors.New("downstream client disconnected")

// Stream runs one chat turn: it sends messages upstream and writes the
// answer to w as SSE frames until the terminal "data: [DONE]" frame.
//
// Every failure after the first byte is reported in-band as an error frame
// followed by the terminal frame, and is also returned. When w fails the
// upstream request is cancelled and nothing more is written.
func (r *Relay) Stream(ctx context.Context, messages []llm.Message, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	out := sse.NewWriter(w)

	upReq, err := r.provider.Compose(messages, r.config.Profile)
	if err != nil {
		return r.fail(out, fmt.Errorf("composing upstream request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, upReq.Method, upReq.URL, bytes.NewReader(upReq.Body))
	if err != nil {
		return r.fail(out, fmt.Errorf("creating upstream request: %w", err))
	}
	httpReq.Header = upReq.Header.Clone()
	httpReq.Header.Set("User-Agent", utils.UserAgent())

	r.logger.Debug("forwarding chat turn to upstream",
		"shape", r.provider.Shape(),
		"model", r.config.Profile.Model,
	)

	httpResp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return r.fail(out, fmt.Errorf("upstream request failed: %w", err))
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 || httpResp.Body == http.NoBody {
		return r.failUpstream(out, httpResp)
	}

	ka := r.startKeepAlive(out, cancel)
	sawDone, err := r.relayBody(ctx, httpResp.Body, out, ka)
	ka.stop()

	switch {
	case err == nil:
	case ka.failed() || errors.Is(err, ErrClientGone):
		r.logger.Debug("client went away mid-stream", "shape", r.provider.Shape())
		return ErrClientGone
	default:
		return r.fail(out, err)
	}

	// A pass-through upstream that sent its own terminal frame already
	// ended the downstream stream.
	if !sawDone {
		if err := out.WriteDone(); err != nil {
			return ErrClientGone
		}
	}

	r.logger.Debug("chat turn complete",
		"shape", r.provider.Shape(),
		"duration", time.Since(start),
	)
	return nil
}

// relayBody copies the upstream body downstream, verbatim for pass-through
// shapes and re-framed otherwise. It returns nil at upstream EOF, and reports
// whether a forwarded upstream stream carried its own terminal frame.
func (r *Relay) relayBody(ctx context.Context, body io.Reader, out *sse.Writer, ka *keepAlive) (bool, error) {
	var (
		tr      *translator
		decoder *sse.Decoder
	)
	if r.provider.PassThrough() {
		decoder = sse.NewDecoder()
	} else {
		tr = newTranslator(r.provider, r.newID(), r.config.Profile.Model, r.now().Unix(), r.logger)
	}

	var (
		chunks, deltas, contentLen int
		sawDone                    bool
	)
	observe := func(events []sse.Event) {
		for _, ev := range events {
			if ev.IsDone() {
				sawDone = true
				continue
			}
			text, err := r.provider.ExtractDelta([]byte(ev.Data))
			if err != nil || text == "" {
				continue
			}
			deltas++
			contentLen += len(text)
		}
	}

	write := func(payloads [][]byte) error {
		for _, p := range payloads {
			if err := out.WriteData(p); err != nil {
				return ErrClientGone
			}
		}
		return nil
	}

	buf := make([]byte, readSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			chunks++
			if tr != nil {
				if err := write(tr.Feed(buf[:n])); err != nil {
					return false, err
				}
			} else {
				observe(decoder.Feed(buf[:n]))
				if err := ka.forward(buf[:n], decoder.AtBoundary()); err != nil {
					return false, err
				}
			}
		}

		if readErr == nil {
			continue
		}
		if ka.failed() {
			return false, ErrClientGone
		}
		if !errors.Is(readErr, io.EOF) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return false, fmt.Errorf("reading upstream stream: %w", ctxErr)
			}
			return false, fmt.Errorf("reading upstream stream: %w", readErr)
		}
		break
	}

	if tr != nil {
		if err := write(tr.Flush()); err != nil {
			return false, err
		}
		r.logger.Debug("translated upstream stream",
			"chunks", chunks,
			"deltas", tr.deltas,
			"skipped", tr.skipped,
		)
		return false, nil
	}

	observe(decoder.Flush())
	r.logger.Debug("forwarded upstream stream",
		"chunks", chunks,
		"deltas", deltas,
		"content_length", contentLen,
	)
	return sawDone, nil
}

// fail writes a best-effort {"error":{"message"}} frame and the terminal
// frame, then returns err.
func (r *Relay) fail(out *sse.Writer, err error) error {
	r.logger.Error("chat turn failed", "error", err)
	r.writeError(out, errorDetail{Message: err.Error()})
	return err
}

// failUpstream relays a non-2xx upstream answer as {"error":{"status","body"}}.
func (r *Relay) failUpstream(out *sse.Writer, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	upErr := &UpstreamError{Status: resp.StatusCode, Body: string(body)}

	r.logger.Error("upstream returned error",
		"status", upErr.Status,
		"body", upErr.Body,
	)
	r.writeError(out, errorDetail{Status: upErr.Status, Body: upErr.Body})
	return upErr
}

func (r *Relay) writeError(out *sse.Writer, detail errorDetail) {
	frame, err := json.Marshal(errorFrame{Error: detail})
	if err != nil {
		frame = []byte(`{"error":{"message":"request failed"}}`)
	}
	if err := out.WriteData(frame); err != nil {
		return
	}
	_ = out.WriteDone()
}

// keepAlive writes ": keep-alive" comments on a ticker until stopped. A
// failed write means the client is gone: it cancels the upstream request so
// the read loop unblocks.
//
// Forwarded upstream bytes may stop in the middle of an event. A comment
// that comes due then is held back until the event is complete.
type keepAlive struct {
	out    *sse.Writer
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	// mu orders comments against forwarded upstream chunks.
	mu       sync.Mutex
	midEvent bool
	pending  bool
	broken   bool
}

func (r *Relay) startKeepAlive(out *sse.Writer, cancel context.CancelFunc) *keepAlive {
	ka := &keepAlive{out: out, cancel: cancel, done: make(chan struct{})}
	ticker := time.NewTicker(r.config.keepAlive())

	ka.wg.Add(1)
	go func() {
		defer ka.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ka.done:
				return
			case <-ticker.C:
				if !ka.tick() {
					return
				}
			}
		}
	}()

	return ka
}

// tick writes a comment, or defers it while an upstream event is half
// written. It returns false once the client is gone.
func (ka *keepAlive) tick() bool {
	ka.mu.Lock()
	defer ka.mu.Unlock()

	if ka.midEvent {
		ka.pending = true
		return true
	}
	return ka.comment()
}

// forward writes an upstream chunk verbatim. atBoundary reports whether the
// bytes forwarded so far end between two events; a deferred comment is
// written as soon as they do.
func (ka *keepAlive) forward(chunk []byte, atBoundary bool) error {
	ka.mu.Lock()
	defer ka.mu.Unlock()

	if _, err := ka.out.Write(chunk); err != nil {
		return ErrClientGone
	}
	ka.midEvent = !atBoundary
	if ka.pending && atBoundary && !ka.broken {
		if !ka.comment() {
			return ErrClientGone
		}
	}
	return nil
}

// comment writes one keep-alive comment. The caller holds mu.
func (ka *keepAlive) comment() bool {
	ka.pending = false
	if err := ka.out.WriteComment("keep-alive"); err != nil {
		ka.broken = true
		ka.cancel()
		return false
	}
	return true
}

// stop ends the ticker goroutine and waits for it to exit.
func (ka *keepAlive) stop() {
	ka.once.Do(func() { close(ka.done) })
	ka.wg.Wait()
}

func (ka *keepAlive) failed() bool {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.broken
}

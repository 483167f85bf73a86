package stream

import (
	"context"
	"errors"
	"io"
)

const readSize = 4096

// Consume reads r until EOF, an error event, or ctx is done, and calls fn
// for every event in order. A read failure is reported to fn as a KindError
// event rather than returned, so fn always sees exactly one terminal event.
// The returned error is non-nil only when ctx ended the stream.
func Consume(ctx context.Context, r io.Reader, fn func(Event)) error {
	p := NewParser()
	buf := make([]byte, readSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.Read(buf)
		if n > 0 {
			for _, ev := range p.Feed(buf[:n]) {
				fn(ev)
			}
			if p.Failed() {
				return nil
			}
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			for _, ev := range p.Close() {
				fn(ev)
			}
			return nil
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			fn(Event{Kind: KindError, Err: err.Error()})
			return nil
		}
	}
}

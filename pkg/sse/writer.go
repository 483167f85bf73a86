package sse

import (
	"fmt"
	"io"
	"sync"
)

type flusher interface {
	Flush()
}

// Writer frames SSE output for a downstream client. It is safe for
// concurrent use: the relay's read loop and its keep-alive ticker share one
// Writer, and every frame is written whole.
type Writer struct {
	mu  sync.Mutex
	dst io.Writer
}

// NewWriter returns a Writer that frames onto dst. When dst implements
// http.Flusher it is flushed after every frame.
func NewWriter(dst io.Writer) *Writer {
	return &Writer{dst: dst}
}

// Write forwards p unchanged. It is used for pass-through upstream chunks.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.dst.Write(p)
	if err != nil {
		return n, err
	}
	w.flush()
	return n, nil
}

// WriteData writes one "data: <payload>" frame.
func (w *Writer) WriteData(payload []byte) error {
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, "\n\n"...)
	_, err := w.Write(frame)
	return err
}

// WriteComment writes one ": <text>" comment frame.
func (w *Writer) WriteComment(text string) error {
	_, err := fmt.Fprintf(w, ": %s\n\n", text)
	return err
}

// WriteDone writes the terminal "data: [DONE]" frame.
func (w *Writer) WriteDone() error {
	return w.WriteData([]byte(Done))
}

func (w *Writer) flush() {
	if f, ok := w.dst.(flusher); ok {
		f.Flush()
	}
}

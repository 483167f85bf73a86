package sse

import "bytes"

// LineBuffer splits a byte stream into lines across chunk reads. A trailing
// incomplete line is held back until the chunk that completes it arrives, so
// a line is never handed out with a multi-byte UTF-8 sequence cut in half.
type LineBuffer struct {
	buf []byte
}

// Feed appends chunk and returns every line it completed, without the line
// terminator. A "\r" before the "\n" is trimmed as well.
func (b *LineBuffer) Feed(chunk []byte) []string {
	b.buf = append(b.buf, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(b.buf, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimSuffix(b.buf[:i], []byte("\r"))))
		b.buf = b.buf[i+1:]
	}

	// Compact so a long stream does not pin every chunk it has seen.
	if len(b.buf) == 0 {
		b.buf = nil
	} else if len(lines) > 0 {
		b.buf = bytes.Clone(b.buf)
	}

	return lines
}

// Flush returns the held-back partial line, if any, and resets the buffer.
func (b *LineBuffer) Flush() (string, bool) {
	if len(b.buf) == 0 {
		return "", false
	}
	line := string(bytes.TrimSuffix(b.buf, []byte("\r")))
	b.buf = nil
	return line, true
}

// Len returns the number of buffered bytes not yet returned as a line.
func (b *LineBuffer) Len() int {
	return len(b.buf)
}

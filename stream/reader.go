package stream

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Framing selects how a response body is cut into chunks
type Framing string

const (
	// FramingChunks treats every transport read as one chunk.
	FramingChunks Framing = "chunks"
	// FramingLines treats every newline-terminated line as one chunk.
	FramingLines Framing = "lines"
)

const (
	readBufferSize = 32 * 1024
	maxLineSize    = 1024 * 1024
)

// ParseFraming validates a framing name. An empty name selects FramingChunks.
func ParseFraming(name string) (Framing, error) {
	switch Framing(strings.ToLower(strings.TrimSpace(name))) {
	case "", FramingChunks:
		return FramingChunks, nil
	case FramingLines:
		return FramingLines, nil
	default:
		return "", fmt.Errorf("unknown framing %q (want %q or %q)", name, FramingChunks, FramingLines)
	}
}

// Reader yields the chunks of a streamed response body in arrival order
type Reader struct {
	src     io.Reader
	framing Framing
	buf     []byte
	pending []byte
	scanner *bufio.Scanner
	err     error
}

// NewReader wraps a response body
func NewReader(src io.Reader, framing Framing) *Reader {
	r := &Reader{src: src, framing: framing}
	if framing == FramingLines {
		r.scanner = bufio.NewScanner(src)
		r.scanner.Buffer(make([]byte, 0, readBufferSize), maxLineSize)
	} else {
		r.buf = make([]byte, readBufferSize)
	}
	return r
}

// Next returns the next non-empty chunk, or io.EOF once the body is drained.
func (r *Reader) Next() (string, error) {
	if r.framing == FramingLines {
		return r.nextLine()
	}
	return r.nextChunk()
}

// Frames decodes the remaining chunks, calling fn for each frame in order.
// It stops at the first error returned by the body or by fn.
func (r *Reader) Frames(fn func(Frame) error) error {
	for {
		chunk, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(Decode(chunk)); err != nil {
			return err
		}
	}
}

func (r *Reader) nextChunk() (string, error) {
	for r.err == nil {
		n, err := r.src.Read(r.buf)
		if err != nil {
			r.err = err
		}
		if n == 0 {
			continue
		}
		data := append(r.pending, r.buf[:n]...)
		cut := completePrefix(data)
		if cut == 0 {
			r.pending = data
			continue
		}
		chunk := string(data[:cut])
		r.pending = append(r.pending[:0:0], data[cut:]...)
		return chunk, nil
	}

	if len(r.pending) > 0 {
		chunk := string(r.pending)
		r.pending = nil
		return chunk, nil
	}
	if r.err == io.EOF {
		return "", io.EOF
	}
	return "", fmt.Errorf("failed to read stream: %w", r.err)
}

func (r *Reader) nextLine() (string, error) {
	for r.scanner.Scan() {
		line := strings.TrimRight(r.scanner.Text(), "\r")
		if line == "" {
			continue
		}
		return line, nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read stream: %w", err)
	}
	return "", io.EOF
}

// completePrefix returns the length of the longest prefix of b that does not
// end inside a multi-byte UTF-8 sequence.
func completePrefix(b []byte) int {
	start := len(b) - utf8.UTFMax
	if start < 0 {
		start = 0
	}
	for i := len(b) - 1; i >= start; i-- {
		if utf8.RuneStart(b[i]) {
			if utf8.FullRune(b[i:]) {
				return len(b)
			}
			return i
		}
	}
	return len(b)
}

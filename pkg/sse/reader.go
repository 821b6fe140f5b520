package sse

import (
	"bufio"
	"io"
	"strings"
)

const (
	initialBufSize = 64 * 1024
	maxFrameSize   = 1024 * 1024
)

// Reader decodes a text/event-stream body into Events, one per blank-line
// delimited block that carries at least one data line. Comment lines, "retry"
// and unknown fields are skipped.
// A single line may be up to 1 MiB.
type Reader struct {
	scanner *bufio.Scanner

	pending Event
	data    []string
	dirty   bool
}

// NewReader returns a Reader that parses SSE events from src.
func NewReader(src io.Reader) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, initialBufSize), maxFrameSize)
	return &Reader{scanner: scanner}
}

// Next blocks until the next complete event is read. It returns nil, nil
// once src is exhausted; an unterminated final block is still returned.
func (r *Reader) Next() (*Event, error) {
	for r.scanner.Scan() {
		line := strings.TrimSuffix(r.scanner.Text(), "\r")

		switch {
		case line == "":
			if ev := r.flush(); ev != nil {
				return ev, nil
			}
		case line[0] == ':':
			// Keep-alive or upstream status comment, e.g. ": OPENROUTER PROCESSING".
		default:
			r.field(line)
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return r.flush(), nil
}

// field applies one "name: value" line to the pending event. The single
// space after the colon is optional.
func (r *Reader) field(line string) {
	name, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")

	switch name {
	case "data":
		r.data = append(r.data, value)
		r.dirty = true
	case "event":
		r.pending.Type = value
	case "id":
		r.pending.ID = value
	}
}

// flush returns the pending event and starts a new one. A block without any
// data line is discarded and yields nil.
func (r *Reader) flush() *Event {
	ev := r.pending
	ev.Data = strings.Join(r.data, "\n")
	dispatch := r.dirty

	r.pending = Event{}
	r.data = r.data[:0]
	r.dirty = false

	if !dispatch {
		return nil
	}
	return &ev
}

// Package sse tokenizes a server-sent-event style text stream into named payloads.
package sse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// CommentPrefix marks lines the server sends as keep-alives.
const CommentPrefix = ":"

// Event is a single decoded (name, payload) pair
type Event struct {
	Name    string
	Payload string
}

// Decoder reads events from a line-oriented stream.
// It is lazy and cannot be restarted once it has returned io.EOF.
type Decoder struct {
	r    *bufio.Reader
	name string
	data []string
	// pending is true once an event: line has been seen and not yet flushed
	pending bool
	done    bool
}

// NewDecoder creates a decoder over r
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next event. At end of stream it flushes a trailing event
// that had no terminating blank line, then returns io.EOF.
func (d *Decoder) Next() (Event, error) {
	for !d.done {
		line, err := d.r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return Event{}, fmt.Errorf("read stream: %w", err)
		}
		if errors.Is(err, io.EOF) {
			d.done = true
			if line == "" {
				break
			}
		}

		if ev, ok := d.feed(strings.TrimRight(line, "\r\n")); ok {
			return ev, nil
		}
	}

	if d.pending {
		return d.flush(), nil
	}
	return Event{}, io.EOF
}

// All drains the decoder and returns every remaining event.
func (d *Decoder) All() ([]Event, error) {
	var events []Event
	for {
		ev, err := d.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

// feed applies one line and reports whether it completed an event
func (d *Decoder) feed(line string) (Event, bool) {
	switch {
	case strings.HasPrefix(line, CommentPrefix):
		return Event{}, false
	case strings.HasPrefix(line, "event:"):
		d.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		d.pending = true
	case strings.HasPrefix(line, "data:"):
		d.data = append(d.data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
	case strings.TrimSpace(line) == "":
		if d.pending {
			return d.flush(), true
		}
		d.data = d.data[:0]
	}
	return Event{}, false
}

func (d *Decoder) flush() Event {
	ev := Event{
		Name:    d.name,
		Payload: strings.TrimSpace(strings.Join(d.data, "\n")),
	}
	d.name = ""
	d.data = nil
	d.pending = false
	return ev
}

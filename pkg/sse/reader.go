package sse

import (
	"bufio"
	"io"
	"strings"
)

const maxLineBytes = 1 << 20

// Reader parses SSE events from a byte stream. Comment lines, which servers
// use as keep-alives, never surface as events.
type Reader struct {
	scanner *bufio.Scanner

	// current accumulates fields until a blank line ends the event.
	current *Event
	hasData bool
	sawData bool
}

// NewReader returns a Reader over src.
func NewReader(src io.Reader) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	return &Reader{
		scanner: scanner,
		current: &Event{},
	}
}

// Next blocks until a complete event is available. It returns nil, nil once
// src is exhausted. A trailing event without a closing blank line is still
// returned.
func (r *Reader) Next() (*Event, error) {
	for r.scanner.Scan() {
		line := strings.TrimSuffix(r.scanner.Text(), "\r")

		if line == "" {
			if r.hasData {
				return r.take(), nil
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		r.parseLine(line)
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	if r.hasData {
		return r.take(), nil
	}
	return nil, nil
}

// parseLine accumulates one "field:value" line. A single space after the
// colon is dropped.
func (r *Reader) parseLine(line string) {
	field, value, found := strings.Cut(line, ":")
	if found {
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "data":
		if r.sawData {
			r.current.Data += "\n"
		}
		r.current.Data += value
		r.sawData = true
		r.hasData = true
	case "event":
		r.current.Type = value
		r.hasData = true
	case "id":
		r.current.ID = value
		r.hasData = true
	default:
		// "retry" and unknown fields are ignored.
	}
}

func (r *Reader) take() *Event {
	ev := r.current
	r.current = &Event{}
	r.hasData = false
	r.sawData = false
	return ev
}

// Package sse reads and writes Server-Sent Events. The API server streams
// committed sync passes with Write and the client consumes them with Reader.
//
// See https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event is a single SSE event, terminated by a blank line on the wire.
type Event struct {
	// Type is the "event:" field. Empty means the default "message" type.
	Type string

	// Data is every "data:" line of the event joined with "\n".
	Data string

	// ID is the "id:" field, if present.
	ID string
}

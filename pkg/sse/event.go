// Package sse decodes text/event-stream bodies incrementally.
//
// Bytes are pushed into a Parser as the transport delivers them and complete
// events come back out. Chunks may be split at any offset: mid-line, between
// the '\r' and '\n' of a CRLF, or inside a multi-byte rune. Only decoding is
// provided; there is no writer side.
//
// Field handling follows
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event is one dispatched message: the fields collected between two blank
// lines.
type Event struct {
	// Type is the "event:" field. Empty means "message".
	Type string

	// Data holds every "data:" line of the event joined by "\n".
	Data string

	// ID is the last valid "id:" value seen in the event.
	ID string
}

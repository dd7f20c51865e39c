package sse

import (
	"bytes"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultMaxLineSize is the longest single SSE line the Parser will buffer
// before treating the line as malformed.
const DefaultMaxLineSize = 1024 * 1024

// byteOrderMark is stripped from the very first line of a stream.
const byteOrderMark = "\uFEFF"

// Option configures a Parser created with NewParser.
type Option func(*Parser)

// WithMaxLineSize overrides DefaultMaxLineSize. Non-positive values are ignored.
func WithMaxLineSize(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxLine = n
		}
	}
}

// Parser incrementally decodes an SSE byte stream.
//
// ┌──────────────┐   ┌───────────────┐   ┌─────────┐
// │ []byte chunk │──▶│ Parser.Feed() │──▶│ []Event │
// └──────────────┘   └───────────────┘   └─────────┘
//
// Feed may be called with chunks split at arbitrary byte offsets; a partial
// trailing line is buffered until its terminator arrives. Events are returned
// in the order their terminating blank line was observed. A Parser is not safe
// for concurrent use.
type Parser struct {
	maxLine int

	// line holds the bytes of the current, unterminated line.
	line []byte

	// skipping is set while discarding an oversized line up to its terminator.
	skipping bool

	// afterCR is set when the previous chunk ended in '\r', so a leading '\n'
	// in the next chunk completes a CRLF pair rather than an empty line.
	afterCR bool

	// seenFirstLine guards BOM stripping.
	seenFirstLine bool

	// current accumulates fields for the event being built.
	eventType string
	id        string
	data      strings.Builder
	hasData   bool
	corrupt   bool

	retry     time.Duration
	hasRetry  bool
	discarded int
}

// NewParser returns a Parser ready to accept the first chunk of a stream.
func NewParser(opts ...Option) *Parser {
	p := &Parser{maxLine: DefaultMaxLineSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Feed decodes chunk and returns every event completed by it. Empty chunks
// are valid and return no events.
func (p *Parser) Feed(chunk []byte) []Event {
	var events []Event

	for len(chunk) > 0 {
		if p.afterCR {
			p.afterCR = false
			if chunk[0] == '\n' {
				chunk = chunk[1:]
				continue
			}
		}

		i := bytes.IndexAny(chunk, "\r\n")
		if i < 0 {
			p.buffer(chunk)
			break
		}

		p.buffer(chunk[:i])
		if chunk[i] == '\r' {
			switch {
			case i+1 == len(chunk):
				p.afterCR = true
			case chunk[i+1] == '\n':
				i++
			}
		}
		chunk = chunk[i+1:]

		if ev, ok := p.endLine(); ok {
			events = append(events, ev)
		}
	}

	return events
}

// Flush is called once the byte stream is exhausted. It terminates a pending
// partial line and dispatches an event that was not followed by a blank line.
func (p *Parser) Flush() []Event {
	var events []Event

	if p.skipping || len(p.line) > 0 {
		if ev, ok := p.endLine(); ok {
			events = append(events, ev)
		}
	}
	if ev, ok := p.dispatch(); ok {
		events = append(events, ev)
	}
	p.afterCR = false

	return events
}

// Retry returns the reconnection delay from the most recent valid "retry:"
// field, if the stream sent one.
func (p *Parser) Retry() (time.Duration, bool) {
	return p.retry, p.hasRetry
}

// Discarded reports how many events were dropped because they contained a
// line longer than the configured maximum.
func (p *Parser) Discarded() int {
	return p.discarded
}

// Reset returns the parser to its initial state, keeping its options.
func (p *Parser) Reset() {
	maxLine := p.maxLine
	*p = Parser{maxLine: maxLine}
}

// buffer appends b to the current line, switching to skip mode when the line
// would grow past the limit.
func (p *Parser) buffer(b []byte) {
	if p.skipping || len(b) == 0 {
		return
	}
	if len(p.line)+len(b) > p.maxLine {
		p.line = p.line[:0]
		p.skipping = true
		p.corrupt = true
		return
	}
	p.line = append(p.line, b...)
}

// endLine processes the buffered line after its terminator was seen.
func (p *Parser) endLine() (Event, bool) {
	if p.skipping {
		p.skipping = false
		p.line = p.line[:0]
		return Event{}, false
	}

	text := string(p.line)
	p.line = p.line[:0]

	if !p.seenFirstLine {
		p.seenFirstLine = true
		text = strings.TrimPrefix(text, byteOrderMark)
	}
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\uFFFD")
	}

	return p.processLine(text)
}

// processLine handles a single decoded line. A blank line dispatches the
// current event.
//
// Per WHATWG, a line has the form "field:value" where the first
// space after the colon is optional and stripped if present.
func (p *Parser) processLine(line string) (Event, bool) {
	if line == "" {
		return p.dispatch()
	}

	// Lines starting with ':' are comments (often keep-alives).
	if line[0] == ':' {
		return Event{}, false
	}

	field, value, found := strings.Cut(line, ":")
	if found {
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "data":
		if p.hasData {
			p.data.WriteByte('\n')
		}
		p.data.WriteString(value)
		p.hasData = true
	case "event":
		p.eventType = value
	case "id":
		if !strings.ContainsRune(value, 0) {
			p.id = value
		}
	case "retry":
		if ms, ok := parseRetry(value); ok {
			p.retry = time.Duration(ms) * time.Millisecond
			p.hasRetry = true
		}
	default:
		// Unknown fields are ignored.
	}

	return Event{}, false
}

// dispatch emits the accumulated event, if any, and clears the field state.
func (p *Parser) dispatch() (Event, bool) {
	defer p.resetEvent()

	if p.corrupt {
		p.discarded++
		return Event{}, false
	}
	if !p.hasData {
		return Event{}, false
	}

	return Event{
		Type: p.eventType,
		Data: p.data.String(),
		ID:   p.id,
	}, true
}

func (p *Parser) resetEvent() {
	p.eventType = ""
	p.id = ""
	p.data.Reset()
	p.hasData = false
	p.corrupt = false
}

// parseRetry accepts ASCII digits only.
func parseRetry(value string) (int64, bool) {
	if value == "" {
		return 0, false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return 0, false
		}
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}

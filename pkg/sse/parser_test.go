package sse_test

import (
	"math/rand/v2"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatstream/pkg/sse"
)

// feedAll feeds every chunk to a fresh parser and flushes it.
func feedAll(chunks ...[]byte) []sse.Event {
	p := sse.NewParser()
	var events []sse.Event
	for _, c := range chunks {
		events = append(events, p.Feed(c)...)
	}
	return append(events, p.Flush()...)
}

func parseString(s string) []sse.Event {
	return feedAll([]byte(s))
}

// splitRandomly cuts b into pieces at n random offsets.
func splitRandomly(r *rand.Rand, b []byte, n int) [][]byte {
	cuts := make([]int, 0, n)
	for range n {
		cuts = append(cuts, r.IntN(len(b)+1))
	}
	for i := 1; i < len(cuts); i++ {
		for j := i; j > 0 && cuts[j] < cuts[j-1]; j-- {
			cuts[j], cuts[j-1] = cuts[j-1], cuts[j]
		}
	}

	var chunks [][]byte
	prev := 0
	for _, c := range cuts {
		chunks = append(chunks, b[prev:c])
		prev = c
	}
	return append(chunks, b[prev:])
}

var _ = Describe("Parser", func() {
	Describe("Feed", func() {
		Context("with standard SSE events", func() {
			It("parses a single event", func() {
				events := parseString("data: hello world\n\n")
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(Equal("hello world"))
				Expect(events[0].Type).To(BeEmpty())
				Expect(events[0].ID).To(BeEmpty())
			})

			It("parses multiple events in order", func() {
				events := parseString("data: first\n\ndata: second\n\n")
				Expect(events).To(Equal([]sse.Event{{Data: "first"}, {Data: "second"}}))
			})

			It("parses event type and ID", func() {
				events := parseString("event: content_block_delta\nid: 42\ndata: {\"type\":\"delta\"}\n\n")
				Expect(events).To(HaveLen(1))
				Expect(events[0].Type).To(Equal("content_block_delta"))
				Expect(events[0].ID).To(Equal("42"))
				Expect(events[0].Data).To(Equal("{\"type\":\"delta\"}"))
			})

			It("joins multiple data lines with newline", func() {
				events := parseString("data: line one\ndata: line two\ndata: line three\n\n")
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(Equal("line one\nline two\nline three"))
			})

			It("keeps an empty first data line when joining", func() {
				events := parseString("data:\ndata: second\n\n")
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(Equal("\nsecond"))
			})

			It("returns events only once their blank line arrives", func() {
				p := sse.NewParser()
				Expect(p.Feed([]byte("data: a\n"))).To(BeEmpty())
				Expect(p.Feed([]byte("\n"))).To(Equal([]sse.Event{{Data: "a"}}))
			})
		})

		Context("with OpenAI-style SSE", func() {
			It("parses streaming chunks and the DONE sentinel", func() {
				input := "data: {\"id\":\"chatcmpl-1\",\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n" +
					"data: {\"id\":\"chatcmpl-1\",\"choices\":[{\"delta\":{\"content\":\" world\"}}]}\n\n" +
					"data: [DONE]\n\n"

				events := parseString(input)
				Expect(events).To(HaveLen(3))
				Expect(events[0].Data).To(Equal("{\"id\":\"chatcmpl-1\",\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}"))
				Expect(events[1].Data).To(Equal("{\"id\":\"chatcmpl-1\",\"choices\":[{\"delta\":{\"content\":\" world\"}}]}"))
				Expect(events[2].Data).To(Equal("[DONE]"))
			})
		})

		Context("with comments and unknown fields", func() {
			It("ignores comment lines", func() {
				events := parseString(": this is a comment\ndata: hello\n\n")
				Expect(events).To(Equal([]sse.Event{{Data: "hello"}}))
			})

			It("ignores keep-alive comments between events", func() {
				events := parseString("data: a\n\n: ping\n\n: ping\n\ndata: b\n\n")
				Expect(events).To(Equal([]sse.Event{{Data: "a"}, {Data: "b"}}))
			})

			It("ignores unknown fields", func() {
				events := parseString("foo: bar\ndata: hello\n\n")
				Expect(events).To(Equal([]sse.Event{{Data: "hello"}}))
			})
		})

		Context("with data field variations", func() {
			It("handles data field with no space after colon", func() {
				events := parseString("data:no-space\n\n")
				Expect(events).To(Equal([]sse.Event{{Data: "no-space"}}))
			})

			It("strips only one leading space", func() {
				events := parseString("data:  two\n\n")
				Expect(events).To(Equal([]sse.Event{{Data: " two"}}))
			})

			It("emits an event for an empty data field", func() {
				events := parseString("data:\n\n")
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(BeEmpty())
			})

			It("emits an event for a data field with only a space", func() {
				events := parseString("data: \n\n")
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(BeEmpty())
			})

			It("treats a line without a colon as a field with an empty value", func() {
				events := parseString("data\n\n")
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(BeEmpty())
			})
		})

		Context("with events that carry no data", func() {
			It("drops an event with only an event type", func() {
				Expect(parseString("event: ping\n\n")).To(BeEmpty())
			})

			It("drops an event with only an ID", func() {
				Expect(parseString("id: 7\n\n")).To(BeEmpty())
			})

			It("does not leak dropped fields into the next event", func() {
				events := parseString("event: ping\n\ndata: x\n\n")
				Expect(events).To(Equal([]sse.Event{{Data: "x"}}))
			})
		})

		Context("with line ending variations", func() {
			It("accepts CRLF, CR and LF terminators", func() {
				events := parseString("data: a\r\n\r\ndata: b\r\rdata: c\n\n")
				Expect(events).To(Equal([]sse.Event{{Data: "a"}, {Data: "b"}, {Data: "c"}}))
			})

			It("treats a CRLF pair split across chunks as one terminator", func() {
				p := sse.NewParser()
				Expect(p.Feed([]byte("data: a\r"))).To(BeEmpty())
				Expect(p.Feed([]byte("\n"))).To(BeEmpty())
				Expect(p.Feed([]byte("\r\n"))).To(Equal([]sse.Event{{Data: "a"}}))
			})

			It("treats CR followed by CR across chunks as a blank line", func() {
				p := sse.NewParser()
				Expect(p.Feed([]byte("data: a\r"))).To(BeEmpty())
				Expect(p.Feed([]byte("\r"))).To(Equal([]sse.Event{{Data: "a"}}))
			})
		})

		Context("with partial input", func() {
			It("buffers a line split across chunks", func() {
				p := sse.NewParser()
				Expect(p.Feed([]byte("da"))).To(BeEmpty())
				Expect(p.Feed([]byte("ta: hel"))).To(BeEmpty())
				Expect(p.Feed([]byte("lo\n"))).To(BeEmpty())
				Expect(p.Feed([]byte("\n"))).To(Equal([]sse.Event{{Data: "hello"}}))
			})

			It("accepts empty chunks", func() {
				p := sse.NewParser()
				Expect(p.Feed(nil)).To(BeEmpty())
				Expect(p.Feed([]byte{})).To(BeEmpty())
				Expect(p.Feed([]byte("data: x\n\n"))).To(Equal([]sse.Event{{Data: "x"}}))
			})

			It("reassembles a multi-byte character split across chunks", func() {
				raw := []byte("data: 世界\n\n")
				// "世" is three bytes starting at offset 6.
				events := feedAll(raw[:7], raw[7:8], raw[8:])
				Expect(events).To(Equal([]sse.Event{{Data: "世界"}}))
			})
		})

		Context("with encoding edge cases", func() {
			It("strips a leading byte order mark", func() {
				events := parseString("\xEF\xBB\xBFdata: x\n\n")
				Expect(events).To(Equal([]sse.Event{{Data: "x"}}))
			})

			It("strips a byte order mark split across chunks", func() {
				events := feedAll([]byte("\xEF"), []byte("\xBB\xBFdata: x\n\n"))
				Expect(events).To(Equal([]sse.Event{{Data: "x"}}))
			})

			It("replaces invalid UTF-8 with the replacement character", func() {
				events := parseString("data: a\xffb\n\n")
				Expect(events).To(Equal([]sse.Event{{Data: "a\uFFFDb"}}))
			})
		})

		Context("with retry and id fields", func() {
			It("records a numeric retry value", func() {
				p := sse.NewParser()
				p.Feed([]byte("retry: 3000\ndata: x\n\n"))

				d, ok := p.Retry()
				Expect(ok).To(BeTrue())
				Expect(d).To(Equal(3 * time.Second))
			})

			It("ignores a non-numeric retry value", func() {
				p := sse.NewParser()
				p.Feed([]byte("retry: 3s\ndata: x\n\n"))

				_, ok := p.Retry()
				Expect(ok).To(BeFalse())
			})

			It("ignores an ID containing NUL", func() {
				events := parseString("id: a\x00b\ndata: x\n\n")
				Expect(events).To(HaveLen(1))
				Expect(events[0].ID).To(BeEmpty())
			})
		})

		Context("with malformed framing", func() {
			It("drops an event with an oversized line and resumes at the next boundary", func() {
				p := sse.NewParser(sse.WithMaxLineSize(16))
				input := "data: " + strings.Repeat("x", 40) + "\ndata: tail\n\ndata: ok\n\n"

				events := append(p.Feed([]byte(input)), p.Flush()...)
				Expect(events).To(Equal([]sse.Event{{Data: "ok"}}))
				Expect(p.Discarded()).To(Equal(1))
			})

			It("resynchronizes when the oversized line arrives in pieces", func() {
				p := sse.NewParser(sse.WithMaxLineSize(16))
				var events []sse.Event
				for _, piece := range []string{"data: xxxxx", "xxxxxxxxxx", "xxxxxxxxx\n", "\n", "data: ok\n\n"} {
					events = append(events, p.Feed([]byte(piece))...)
				}

				Expect(events).To(Equal([]sse.Event{{Data: "ok"}}))
				Expect(p.Discarded()).To(Equal(1))
			})
		})
	})

	Describe("Flush", func() {
		It("yields an event when the stream ends without a trailing blank line", func() {
			p := sse.NewParser()
			Expect(p.Feed([]byte("data: unterminated"))).To(BeEmpty())
			Expect(p.Flush()).To(Equal([]sse.Event{{Data: "unterminated"}}))
			Expect(p.Flush()).To(BeEmpty())
		})

		It("returns nothing on empty input", func() {
			Expect(parseString("")).To(BeEmpty())
		})

		It("returns nothing on input with only blank lines", func() {
			Expect(parseString("\n\n\n")).To(BeEmpty())
		})

		It("does not yield a pending event without data", func() {
			p := sse.NewParser()
			p.Feed([]byte("event: ping\n"))
			Expect(p.Flush()).To(BeEmpty())
		})
	})

	Describe("Reset", func() {
		It("discards buffered state", func() {
			p := sse.NewParser()
			p.Feed([]byte("data: stale\ndata: par"))
			p.Reset()

			Expect(p.Feed([]byte("data: fresh\n\n"))).To(Equal([]sse.Event{{Data: "fresh"}}))
		})
	})

	Describe("chunk boundary independence", func() {
		corpus := []byte("\xEF\xBB\xBF: keep-alive\r\n" +
			"event: message\r\nid: 1\r\ndata: {\"choices\":[{\"delta\":{\"content\":\"Hé\"}}]}\r\n\r\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\"llo 世界 🎉\"}}]}\n\n" +
			"data: multi\rdata: line\r\r" +
			"retry: 1500\nevent: ping\n\n" +
			"data: [DONE]\n\n")

		var expected []sse.Event

		BeforeEach(func() {
			expected = feedAll(corpus)
		})

		It("produces the reference events from one chunk", func() {
			Expect(expected).To(Equal([]sse.Event{
				{Type: "message", ID: "1", Data: "{\"choices\":[{\"delta\":{\"content\":\"Hé\"}}]}"},
				{Data: "{\"choices\":[{\"delta\":{\"content\":\"llo 世界 🎉\"}}]}"},
				{Data: "multi\nline"},
				{Data: "[DONE]"},
			}))
		})

		It("produces identical events for every two-way split", func() {
			for i := 0; i <= len(corpus); i++ {
				Expect(feedAll(corpus[:i], corpus[i:])).To(Equal(expected), "split at %d", i)
			}
		})

		It("produces identical events when fed one byte at a time", func() {
			chunks := make([][]byte, 0, len(corpus))
			for i := range corpus {
				chunks = append(chunks, corpus[i:i+1])
			}
			Expect(feedAll(chunks...)).To(Equal(expected))
		})

		It("produces identical events for random multi-way splits", func() {
			r := rand.New(rand.NewPCG(7, 11))
			for range 200 {
				chunks := splitRandomly(r, corpus, 1+r.IntN(12))
				Expect(feedAll(chunks...)).To(Equal(expected))
			}
		})
	})
})

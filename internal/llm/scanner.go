package llm

import (
	"bytes"
	"encoding/json"
)

// Event is one parsed element of the upstream SSE stream: either a content
// delta or the terminal marker.
type Event struct {
	Content string
	Done    bool
}

// DeltaScanner is a push parser for the OpenAI-style SSE wire format. Bytes
// go in through Write in arbitrarily sized pieces; complete content deltas
// come out. An incomplete trailing line is carried across writes, so the
// scanner produces the same event sequence no matter where the transport
// splits the byte stream.
//
// The scanner is transport-agnostic and holds no I/O state, which keeps it
// unit-testable against arbitrary split points.
type DeltaScanner struct {
	buf  []byte
	done bool
}

// Write feeds raw upstream bytes into the scanner and returns the events
// completed by this write. After the terminal marker has been seen, further
// input produces no events.
func (s *DeltaScanner) Write(p []byte) []Event {
	if s.done {
		return nil
	}
	s.buf = append(s.buf, p...)

	var events []Event
	for {
		i := bytes.IndexByte(s.buf, '\n')
		if i < 0 {
			break
		}
		line := s.buf[:i]
		s.buf = s.buf[i+1:]

		ev, ok := parseLine(line)
		if !ok {
			continue
		}
		events = append(events, ev)
		if ev.Done {
			s.done = true
			break
		}
	}
	return events
}

// Flush processes any remaining buffered partial line. Call it once after the
// upstream reaches EOF; some upstreams omit the final newline.
func (s *DeltaScanner) Flush() []Event {
	if s.done || len(s.buf) == 0 {
		return nil
	}
	line := s.buf
	s.buf = nil

	ev, ok := parseLine(line)
	if !ok {
		return nil
	}
	if ev.Done {
		s.done = true
	}
	return []Event{ev}
}

// Done reports whether the terminal marker has been consumed.
func (s *DeltaScanner) Done() bool {
	return s.done
}

// deltaLine mirrors the subset of the chunk JSON the relay needs.
type deltaLine struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// parseLine extracts a content delta or the terminal marker from one SSE
// line. Lines that are not data lines, carry no content, or fail to parse
// are skipped.
func parseLine(line []byte) (Event, bool) {
	line = bytes.TrimSpace(line)
	if !bytes.HasPrefix(line, []byte("data: ")) {
		return Event{}, false
	}
	payload := bytes.TrimSpace(line[len("data: "):])

	if bytes.Equal(payload, []byte("[DONE]")) {
		return Event{Done: true}, true
	}

	var parsed deltaLine
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return Event{}, false
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Delta.Content == nil {
		return Event{}, false
	}
	return Event{Content: *parsed.Choices[0].Delta.Content}, true
}

package llm

import (
	"strings"
	"testing"
)

const sampleStream = "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\" world\"}}]}\n\n" +
	"data: [DONE]\n\n"

// collect feeds the input to a fresh scanner in pieces of the given size and
// returns the concatenated deltas and whether the terminal marker was seen.
func collect(t *testing.T, input string, pieceSize int) (string, bool) {
	t.Helper()

	var s DeltaScanner
	var sb strings.Builder
	done := false

	for start := 0; start < len(input); start += pieceSize {
		end := start + pieceSize
		if end > len(input) {
			end = len(input)
		}
		for _, ev := range s.Write([]byte(input[start:end])) {
			if ev.Done {
				done = true
				continue
			}
			sb.WriteString(ev.Content)
		}
	}
	for _, ev := range s.Flush() {
		if ev.Done {
			done = true
			continue
		}
		sb.WriteString(ev.Content)
	}

	return sb.String(), done
}

func TestScanner_WholeStream(t *testing.T) {
	got, done := collect(t, sampleStream, len(sampleStream))
	if got != "Hello world" {
		t.Errorf("deltas = %q, want %q", got, "Hello world")
	}
	if !done {
		t.Error("terminal marker not seen")
	}
}

func TestScanner_ArbitrarySplits(t *testing.T) {
	// Every piece size from single bytes up must yield the same sequence.
	for size := 1; size <= len(sampleStream); size++ {
		got, done := collect(t, sampleStream, size)
		if got != "Hello world" {
			t.Fatalf("piece size %d: deltas = %q, want %q", size, got, "Hello world")
		}
		if !done {
			t.Fatalf("piece size %d: terminal marker not seen", size)
		}
	}
}

func TestScanner_MissingTrailingNewline(t *testing.T) {
	input := "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}"
	got, done := collect(t, input, 7)
	if got != "partial" {
		t.Errorf("deltas = %q, want %q", got, "partial")
	}
	if done {
		t.Error("terminal marker reported without [DONE]")
	}
}

func TestScanner_SkipsGarbage(t *testing.T) {
	input := ": keepalive comment\n" +
		"event: ping\n" +
		"data: {not json}\n" +
		"data: {\"choices\":[]}\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n" +
		"data: [DONE]\n"
	got, done := collect(t, input, 3)
	if got != "ok" {
		t.Errorf("deltas = %q, want %q", got, "ok")
	}
	if !done {
		t.Error("terminal marker not seen")
	}
}

func TestScanner_NothingAfterDone(t *testing.T) {
	var s DeltaScanner
	s.Write([]byte("data: [DONE]\n"))
	if !s.Done() {
		t.Fatal("Done() = false after [DONE]")
	}

	events := s.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"late\"}}]}\n"))
	if len(events) != 0 {
		t.Errorf("got %d events after [DONE], want 0", len(events))
	}
}

func TestScanner_EmptyContentDelta(t *testing.T) {
	var s DeltaScanner
	events := s.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"\"}}]}\n"))
	if len(events) != 1 || events[0].Content != "" || events[0].Done {
		t.Errorf("events = %+v, want one empty content delta", events)
	}
}

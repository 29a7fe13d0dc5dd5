package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestLabelWriterSplitsLines(t *testing.T) {
	var out bytes.Buffer
	lw := NewLabelWriter(&out, "backend", 0)

	lw.Write([]byte("first line\nsec"))
	lw.Write([]byte("ond line\n"))

	got := out.String()
	if strings.Count(got, "\n") != 2 {
		t.Errorf("expected 2 completed lines, got %q", got)
	}
	if !strings.Contains(got, "first line") || !strings.Contains(got, "second line") {
		t.Errorf("line content mangled: %q", got)
	}
	// Each emitted line carries the label tag.
	for _, line := range strings.SplitAfter(got, "\n") {
		if line != "" && !strings.Contains(line, "[backend]") {
			t.Errorf("line missing label: %q", line)
		}
	}
}

func TestLabelWriterFlush(t *testing.T) {
	var out bytes.Buffer
	lw := NewLabelWriter(&out, "frontend", 1)

	lw.Write([]byte("no newline yet"))
	if out.Len() != 0 {
		t.Errorf("partial line emitted early: %q", out.String())
	}

	lw.Flush()
	if !strings.Contains(out.String(), "no newline yet") {
		t.Errorf("Flush did not emit the partial line: %q", out.String())
	}
}

func TestLabelWriterMirror(t *testing.T) {
	var mirrored []string
	lw := NewLabelWriter(nil, "backend", 0).Mirror(func(line string) {
		mirrored = append(mirrored, line)
	})

	lw.Write([]byte("alpha\nbeta\n"))
	if len(mirrored) != 2 || mirrored[0] != "alpha" || mirrored[1] != "beta" {
		t.Errorf("mirrored = %v, want [alpha beta] without prefixes", mirrored)
	}
}

func TestLogBufferRing(t *testing.T) {
	lb := NewLogBuffer(3)
	for _, line := range []string{"a", "b", "c", "d"} {
		lb.Append(line)
	}

	if lb.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", lb.Len())
	}
	got := lb.Last(3)
	want := []string{"b", "c", "d"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Last(3) = %v, want %v", got, want)
			break
		}
	}

	if got := lb.Last(10); len(got) != 3 {
		t.Errorf("Last(10) = %d lines, want 3", len(got))
	}
}

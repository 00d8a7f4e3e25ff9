package subtitle

import (
	"errors"
	"math"
	"strings"
	"testing"
)

const sampleLyrics = `
[Intro]
morning light on empty streets

[Verse 1]
the city wakes up slowly now
news is rolling in again

[Chorus]
listen to the world turn round
`

func TestCues_CoversExactTarget(t *testing.T) {
	e := NewEngine()
	cues, err := e.Cues(sampleLyrics, 70.0)
	if err != nil {
		t.Fatalf("Cues: %v", err)
	}
	if len(cues) != 4 {
		t.Fatalf("expected 4 cues, got %d", len(cues))
	}

	if cues[0].Start != 0 {
		t.Errorf("first cue starts at %v, want 0", cues[0].Start)
	}
	if got := cues[len(cues)-1].End; math.Abs(got-70.0) > Tolerance {
		t.Errorf("final cue ends at %v, want 70.0", got)
	}

	// Back-to-back, no gaps or overlaps.
	for i := 1; i < len(cues); i++ {
		if cues[i].Start != cues[i-1].End {
			t.Errorf("gap between cue %d and %d: %v != %v", i-1, i, cues[i-1].End, cues[i].Start)
		}
	}

	// Sum of durations equals the target within tolerance.
	var sum float64
	for _, c := range cues {
		sum += c.Duration()
	}
	if math.Abs(sum-70.0) > Tolerance {
		t.Errorf("durations sum to %v, want 70.0", sum)
	}
}

func TestCues_ProportionalSplit(t *testing.T) {
	// Two lines of 10 and 30 characters, target 8s: rescale yields a 1:3
	// split regardless of rate, so cues are [0,2) and [2,8).
	e := &Engine{CharsPerSecond: 15.0, MinLineDuration: 0}
	lyrics := strings.Repeat("a", 10) + "\n" + strings.Repeat("b", 30)

	cues, err := e.Cues(lyrics, 8.0)
	if err != nil {
		t.Fatalf("Cues: %v", err)
	}
	if len(cues) != 2 {
		t.Fatalf("expected 2 cues, got %d", len(cues))
	}
	if math.Abs(cues[0].End-2.0) > Tolerance {
		t.Errorf("first cue ends at %v, want 2.0", cues[0].End)
	}
	if math.Abs(cues[1].Start-2.0) > Tolerance || math.Abs(cues[1].End-8.0) > Tolerance {
		t.Errorf("second cue [%v,%v), want [2,8)", cues[1].Start, cues[1].End)
	}
}

func TestCues_MarkersNeverBecomeCues(t *testing.T) {
	e := NewEngine()
	cues, err := e.Cues(sampleLyrics, 30.0)
	if err != nil {
		t.Fatalf("Cues: %v", err)
	}
	for _, c := range cues {
		if strings.HasPrefix(c.Text, "[") && strings.HasSuffix(c.Text, "]") {
			t.Errorf("section marker leaked into cues: %q", c.Text)
		}
	}
}

func TestCues_OnlyMarkersYieldsEmptySequence(t *testing.T) {
	e := NewEngine()
	cues, err := e.Cues("[Intro]\n\n[Outro]\n", 60.0)
	if err != nil {
		t.Fatalf("expected empty sequence, got error %v", err)
	}
	if len(cues) != 0 {
		t.Fatalf("expected 0 cues, got %d", len(cues))
	}
}

func TestCues_InvalidParameters(t *testing.T) {
	tests := []struct {
		name     string
		rate     float64
		duration float64
	}{
		{name: "zero rate", rate: 0, duration: 10},
		{name: "negative rate", rate: -1, duration: 10},
		{name: "zero duration", rate: 15, duration: 0},
		{name: "negative duration", rate: 15, duration: -5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := &Engine{CharsPerSecond: tc.rate, MinLineDuration: 2.0}
			_, err := e.Cues("some line", tc.duration)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("got %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestCues_ShortTargetRescalesFlooredLines(t *testing.T) {
	// Floors are applied before rescale; a target shorter than the floored
	// total compresses every line uniformly, floored lines included.
	e := &Engine{CharsPerSecond: 15.0, MinLineDuration: 2.0}
	cues, err := e.Cues("hi\nyo\nok", 3.0)
	if err != nil {
		t.Fatalf("Cues: %v", err)
	}
	if len(cues) != 3 {
		t.Fatalf("expected 3 cues, got %d", len(cues))
	}
	for i, c := range cues {
		if math.Abs(c.Duration()-1.0) > Tolerance {
			t.Errorf("cue %d duration %v, want 1.0", i, c.Duration())
		}
	}
}

func TestSplitLines(t *testing.T) {
	lines := SplitLines("  [Verse]  \nhello\n\n [not a marker\nworld ]\n")
	want := []string{"hello", "[not a marker", "world ]"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines %v, want %d", len(lines), lines, len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

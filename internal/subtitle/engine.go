// Package subtitle synthesizes timed caption tracks from free lyric text and
// a target duration. It has no dependencies on the rest of the pipeline.
package subtitle

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrInvalidParameter is returned for caller contract violations: a
// non-positive display rate or target duration.
var ErrInvalidParameter = errors.New("subtitle: invalid parameter")

// Tolerance is the fractional-second slack allowed on the final cue end,
// since encoded time has finite (millisecond) precision.
const Tolerance = 0.001

// sectionMarker matches lines that are nothing but a bracketed heading such
// as [Intro] or [Verse 1]. They never become cues.
var sectionMarker = regexp.MustCompile(`^\[.*\]$`)

// Cue is one timed subtitle line. Start/End form a half-open interval in
// seconds; consecutive cues are back-to-back with no gaps or overlaps.
type Cue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Style string  `json:"style,omitempty"`
}

// Duration returns the cue's display time in seconds.
func (c Cue) Duration() float64 { return c.End - c.Start }

// Engine assigns timings to lyric lines.
type Engine struct {
	// CharsPerSecond is the display rate used to weight lines by length.
	CharsPerSecond float64
	// MinLineDuration is the floor applied to each line's raw duration so
	// very short lines do not flicker. Floored lines are still subject to
	// the uniform rescale, so a floored line can end up below the floor
	// when the raw total exceeds the target duration.
	MinLineDuration float64
}

// NewEngine returns an engine with the defaults used for song captions:
// 15 characters per second with a 2 second per-line floor.
func NewEngine() *Engine {
	return &Engine{CharsPerSecond: 15.0, MinLineDuration: 2.0}
}

// Cues maps a lyric text block onto an ordered cue sequence covering exactly
// [0, duration]. Section-marker lines are stripped first; if nothing remains
// the result is an empty sequence, not an error.
func (e *Engine) Cues(lyrics string, duration float64) ([]Cue, error) {
	if e.CharsPerSecond <= 0 || duration <= 0 {
		return nil, ErrInvalidParameter
	}

	lines := SplitLines(lyrics)
	if len(lines) == 0 {
		return []Cue{}, nil
	}

	raw := make([]float64, len(lines))
	var total float64
	for i, line := range lines {
		d := float64(utf8.RuneCountInString(line)) / e.CharsPerSecond
		if d < e.MinLineDuration {
			d = e.MinLineDuration
		}
		raw[i] = d
		total += d
	}

	// Uniform rescale so the cue sequence spans the requested duration
	// exactly. This is a hard postcondition, not a best-effort fit.
	scale := duration / total

	cues := make([]Cue, len(lines))
	var t float64
	for i, line := range lines {
		end := t + raw[i]*scale
		cues[i] = Cue{Start: t, End: end, Text: line}
		t = end
	}
	// Pin the final end to the target so float accumulation cannot drift
	// past the tolerance.
	cues[len(cues)-1].End = duration

	return cues, nil
}

// SplitLines breaks lyric text into content lines: blank lines are dropped,
// surrounding whitespace is trimmed, and bracketed-only section markers are
// removed.
func SplitLines(lyrics string) []string {
	var out []string
	for _, line := range strings.Split(lyrics, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || sectionMarker.MatchString(line) {
			continue
		}
		out = append(out, line)
	}
	return out
}

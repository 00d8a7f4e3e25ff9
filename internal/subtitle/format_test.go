package subtitle

import (
	"strings"
	"testing"
)

func TestFormatSRT(t *testing.T) {
	cues := []Cue{
		{Start: 0, End: 2.5, Text: "first line"},
		{Start: 2.5, End: 8, Text: "second line"},
	}

	srt := FormatSRT(cues)

	if !strings.Contains(srt, "1\n00:00:00,000 --> 00:00:02,500\nfirst line\n") {
		t.Fatalf("first entry malformed:\n%s", srt)
	}
	if !strings.Contains(srt, "2\n00:00:02,500 --> 00:00:08,000\nsecond line\n") {
		t.Fatalf("second entry malformed:\n%s", srt)
	}
}

func TestFormatASS_HeaderAndDialogue(t *testing.T) {
	cues := []Cue{{Start: 0, End: 2.5, Text: "hello"}}
	ass := FormatASS(cues, DefaultStyle())

	for _, want := range []string{
		"[Script Info]",
		"ScriptType: v4.00+",
		"[V4+ Styles]",
		"Style: Default,Noto Sans CJK JP,52,&H00FFFFFF,&H00FF00FF,&H00000000,&H80000000,-1,",
		"[Events]",
		"Dialogue: 0,0:00:00.00,0:00:02.50,Default,,0,0,0,,{\\fad(300,300)}hello",
	} {
		if !strings.Contains(ass, want) {
			t.Errorf("missing %q in:\n%s", want, ass)
		}
	}
}

func TestFormatASS_NoFadeOmitsEffect(t *testing.T) {
	style := DefaultStyle()
	style.FadeIn, style.FadeOut = 0, 0
	ass := FormatASS([]Cue{{Start: 1, End: 2, Text: "plain"}}, style)

	if strings.Contains(ass, "\\fad") {
		t.Fatalf("unexpected fade effect:\n%s", ass)
	}
	if !strings.Contains(ass, "Dialogue: 0,0:00:01.00,0:00:02.00,Default,,0,0,0,,plain") {
		t.Fatalf("dialogue line malformed:\n%s", ass)
	}
}

// Both serializations must carry identical timing for the same cues; only
// the precision of the clock differs (ms vs cs).
func TestFormats_SameTiming(t *testing.T) {
	e := NewEngine()
	cues, err := e.Cues(sampleLyrics, 45.0)
	if err != nil {
		t.Fatalf("Cues: %v", err)
	}

	srt := FormatSRT(cues)
	ass := FormatASS(cues, DefaultStyle())

	if !strings.Contains(srt, srtTime(cues[0].End)) {
		t.Errorf("srt missing boundary %s", srtTime(cues[0].End))
	}
	if !strings.Contains(ass, assTime(cues[0].End)) {
		t.Errorf("ass missing boundary %s", assTime(cues[0].End))
	}
}

func TestTimeFormatting(t *testing.T) {
	tests := []struct {
		seconds float64
		srt     string
		ass     string
	}{
		{0, "00:00:00,000", "0:00:00.00"},
		{2.5, "00:00:02,500", "0:00:02.50"},
		{61.25, "00:01:01,250", "0:01:01.25"},
		{3661.007, "01:01:01,007", "1:01:01.01"},
	}

	for _, tc := range tests {
		if got := srtTime(tc.seconds); got != tc.srt {
			t.Errorf("srtTime(%v) = %q, want %q", tc.seconds, got, tc.srt)
		}
		if got := assTime(tc.seconds); got != tc.ass {
			t.Errorf("assTime(%v) = %q, want %q", tc.seconds, got, tc.ass)
		}
	}
}

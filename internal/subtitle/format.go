package subtitle

import (
	"fmt"
	"strings"
)

// Style carries the rendering attributes for the style-annotated (ASS)
// serialization. Colors use the &HAABBGGRR form the format expects. Style
// never affects timing: the same cues serialize to identical intervals in
// both forms.
type Style struct {
	FontName       string
	FontSize       int
	PrimaryColor   string
	SecondaryColor string
	OutlineColor   string
	BackColor      string
	Outline        float64
	Shadow         float64
	Bold           bool
	Alignment      int // numpad layout, 2 = bottom center
	MarginV        int
	FadeIn         float64 // seconds, 0 disables
	FadeOut        float64
}

// DefaultStyle mirrors the look used for the composited lyric videos.
func DefaultStyle() Style {
	return Style{
		FontName:       "Noto Sans CJK JP",
		FontSize:       52,
		PrimaryColor:   "&H00FFFFFF",
		SecondaryColor: "&H00FF00FF",
		OutlineColor:   "&H00000000",
		BackColor:      "&H80000000",
		Outline:        3.0,
		Shadow:         2.0,
		Bold:           true,
		Alignment:      2,
		MarginV:        40,
		FadeIn:         0.3,
		FadeOut:        0.3,
	}
}

// FormatSRT renders cues in the minimal numbered form:
//
//	1
//	00:00:00,000 --> 00:00:02,500
//	text
func FormatSRT(cues []Cue) string {
	var b strings.Builder
	for i, c := range cues {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", srtTime(c.Start), srtTime(c.End))
		b.WriteString(c.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// FormatASS renders cues in the style-rich Advanced SubStation Alpha form
// with one global style header and an optional per-cue fade effect.
func FormatASS(cues []Cue, style Style) string {
	var b strings.Builder

	b.WriteString("[Script Info]\n")
	b.WriteString("Title: NewsMelody Captions\n")
	b.WriteString("ScriptType: v4.00+\n")
	b.WriteString("Collisions: Normal\n")
	b.WriteString("PlayDepth: 0\n")
	b.WriteString("Timer: 100.0000\n")
	b.WriteString("WrapStyle: 0\n\n")

	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, " +
		"OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, " +
		"ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, " +
		"Alignment, MarginL, MarginR, MarginV, Encoding\n")
	bold := 0
	if style.Bold {
		bold = -1
	}
	fmt.Fprintf(&b, "Style: Default,%s,%d,%s,%s,%s,%s,%d,0,0,0,100,100,0,0,1,%g,%g,%d,20,20,%d,1\n\n",
		style.FontName, style.FontSize, style.PrimaryColor, style.SecondaryColor,
		style.OutlineColor, style.BackColor, bold, style.Outline, style.Shadow,
		style.Alignment, style.MarginV)

	b.WriteString("[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, c := range cues {
		text := c.Text
		if style.FadeIn > 0 || style.FadeOut > 0 {
			text = fmt.Sprintf("{\\fad(%d,%d)}%s",
				int(style.FadeIn*1000), int(style.FadeOut*1000), c.Text)
		}
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			assTime(c.Start), assTime(c.End), text)
	}
	return b.String()
}

// srtTime formats seconds as HH:MM:SS,mmm.
func srtTime(seconds float64) string {
	ms := int(seconds*1000 + 0.5)
	h := ms / 3600000
	m := ms % 3600000 / 60000
	s := ms % 60000 / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

// assTime formats seconds as H:MM:SS.cc (centisecond precision).
func assTime(seconds float64) string {
	cs := int(seconds*100 + 0.5)
	h := cs / 360000
	m := cs % 360000 / 6000
	s := cs % 6000 / 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs%100)
}

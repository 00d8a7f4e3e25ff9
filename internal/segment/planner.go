// Package segment splits a long audio track bound to a static image into a
// contiguous sequence of bounded-length vertical clips for short-form
// distribution.
package segment

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
)

// ErrInvalidParameter is returned for a non-positive source duration or cap.
var ErrInvalidParameter = errors.New("segment: invalid parameter")

// Default short-form frame: vertical 9:16.
const (
	DefaultWidth  = 1080
	DefaultHeight = 1920
)

// Clip describes one planned output segment. Indexes are 1-based and
// contiguous; Start is the offset into the source track.
type Clip struct {
	Index      int     `json:"index"`
	Start      float64 `json:"start"`
	Duration   float64 `json:"duration"`
	OutputPath string  `json:"outputPath"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// Plan computes ceil(duration/cap) clips covering [0, duration) contiguously.
// Every clip has length cap except the final one, which carries the
// remainder and is always strictly positive: an exact multiple produces no
// trailing zero-length clip. Output paths are short_01.mp4, short_02.mp4, ...
// under outputDir.
func Plan(duration, cap float64, outputDir string) ([]Clip, error) {
	if duration <= 0 || cap <= 0 {
		return nil, ErrInvalidParameter
	}

	n := int(math.Ceil(duration / cap))
	clips := make([]Clip, 0, n)
	for i := 0; i < n; i++ {
		start := float64(i) * cap
		length := cap
		if rem := duration - start; rem < length {
			length = rem
		}
		clips = append(clips, Clip{
			Index:      i + 1,
			Start:      start,
			Duration:   length,
			OutputPath: filepath.Join(outputDir, fmt.Sprintf("short_%02d.mp4", i+1)),
			Width:      DefaultWidth,
			Height:     DefaultHeight,
		})
	}
	return clips, nil
}

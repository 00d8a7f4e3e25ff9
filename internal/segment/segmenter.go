package segment

import (
	"context"
	"fmt"
	"log"
	"os"
)

// ClipEncoder renders one planned clip from the source audio and still
// image. Implemented by the ffmpeg client.
type ClipEncoder interface {
	RenderClip(ctx context.Context, imagePath, audioPath string, clip Clip) error
}

// Result is the per-clip outcome of a segmentation run. Partial success is
// representable: earlier clips may succeed while later ones fail, and the
// caller decides whether partial output is acceptable.
type Result struct {
	Clip Clip
	Err  error
}

// Segmenter drives the encoder across a clip plan.
type Segmenter struct {
	encoder ClipEncoder
}

func NewSegmenter(encoder ClipEncoder) *Segmenter {
	return &Segmenter{encoder: encoder}
}

// Render produces every clip in the plan, reporting success or failure per
// clip. A clip whose output file already exists is counted as succeeded
// without re-invoking the encoder, which keeps re-runs idempotent.
func (s *Segmenter) Render(ctx context.Context, imagePath, audioPath string, clips []Clip) []Result {
	results := make([]Result, 0, len(clips))
	for _, clip := range clips {
		if fi, err := os.Stat(clip.OutputPath); err == nil && fi.Size() > 0 {
			log.Printf("[segment] clip %d already rendered, skipping: %s", clip.Index, clip.OutputPath)
			results = append(results, Result{Clip: clip})
			continue
		}

		err := s.encoder.RenderClip(ctx, imagePath, audioPath, clip)
		if err != nil {
			err = fmt.Errorf("clip %d: %w", clip.Index, err)
			log.Printf("[segment] %v", err)
		}
		results = append(results, Result{Clip: clip, Err: err})
	}
	return results
}

// Failed collects the errors from a result set.
func Failed(results []Result) []error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}

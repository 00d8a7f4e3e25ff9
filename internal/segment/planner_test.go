package segment

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name      string
		duration  float64
		cap       float64
		wantN     int
		wantLens  []float64
	}{
		{name: "remainder", duration: 95, cap: 30, wantN: 4, wantLens: []float64{30, 30, 30, 5}},
		{name: "exact multiple", duration: 90, cap: 30, wantN: 3, wantLens: []float64{30, 30, 30}},
		{name: "shorter than cap", duration: 12, cap: 30, wantN: 1, wantLens: []float64{12}},
		{name: "equal to cap", duration: 30, cap: 30, wantN: 1, wantLens: []float64{30}},
		{name: "just over cap", duration: 30.5, cap: 30, wantN: 2, wantLens: []float64{30, 0.5}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clips, err := Plan(tc.duration, tc.cap, "out")
			if err != nil {
				t.Fatalf("Plan: %v", err)
			}
			if len(clips) != tc.wantN {
				t.Fatalf("got %d clips, want %d", len(clips), tc.wantN)
			}

			var sum float64
			for i, c := range clips {
				if c.Index != i+1 {
					t.Errorf("clip %d has index %d", i, c.Index)
				}
				if math.Abs(c.Duration-tc.wantLens[i]) > 1e-9 {
					t.Errorf("clip %d duration %v, want %v", i, c.Duration, tc.wantLens[i])
				}
				if c.Duration <= 0 {
					t.Errorf("clip %d has non-positive duration %v", i, c.Duration)
				}
				if want := float64(i) * tc.cap; math.Abs(c.Start-want) > 1e-9 {
					t.Errorf("clip %d start %v, want %v", i, c.Start, want)
				}
				sum += c.Duration
			}
			if math.Abs(sum-tc.duration) > 1e-9 {
				t.Errorf("durations sum to %v, want %v", sum, tc.duration)
			}
		})
	}
}

func TestPlan_InvalidParameters(t *testing.T) {
	for _, tc := range []struct{ d, c float64 }{{0, 30}, {-1, 30}, {95, 0}, {95, -5}} {
		if _, err := Plan(tc.d, tc.c, "out"); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("Plan(%v, %v) = %v, want ErrInvalidParameter", tc.d, tc.c, err)
		}
	}
}

func TestPlan_VerticalFrame(t *testing.T) {
	clips, err := Plan(10, 30, "out")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if clips[0].Width != 1080 || clips[0].Height != 1920 {
		t.Errorf("frame %dx%d, want 1080x1920", clips[0].Width, clips[0].Height)
	}
	if clips[0].OutputPath != filepath.Join("out", "short_01.mp4") {
		t.Errorf("output path %q", clips[0].OutputPath)
	}
}

// fakeEncoder fails for clip indexes listed in failAt and records calls.
type fakeEncoder struct {
	failAt map[int]bool
	calls  []int
	write  bool
}

func (f *fakeEncoder) RenderClip(_ context.Context, _, _ string, clip Clip) error {
	f.calls = append(f.calls, clip.Index)
	if f.failAt[clip.Index] {
		return errors.New("encoder exploded")
	}
	if f.write {
		if err := os.WriteFile(clip.OutputPath, []byte("x"), 0644); err != nil {
			return err
		}
	}
	return nil
}

func TestRender_PartialFailure(t *testing.T) {
	dir := t.TempDir()
	clips, err := Plan(95, 30, dir)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	enc := &fakeEncoder{failAt: map[int]bool{3: true}}
	results := NewSegmenter(enc).Render(context.Background(), "img.jpg", "audio.mp3", clips)

	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}
	if results[2].Err == nil {
		t.Error("clip 3 should have failed")
	}
	for _, i := range []int{0, 1, 3} {
		if results[i].Err != nil {
			t.Errorf("clip %d failed unexpectedly: %v", i+1, results[i].Err)
		}
	}
	if got := Failed(results); len(got) != 1 {
		t.Errorf("Failed reported %d errors, want 1", len(got))
	}
}

func TestRender_SkipsExistingOutputs(t *testing.T) {
	dir := t.TempDir()
	clips, err := Plan(60, 30, dir)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	// First run renders everything.
	enc := &fakeEncoder{write: true}
	seg := NewSegmenter(enc)
	if errs := Failed(seg.Render(context.Background(), "i", "a", clips)); len(errs) != 0 {
		t.Fatalf("first run failed: %v", errs)
	}
	if len(enc.calls) != 2 {
		t.Fatalf("first run invoked encoder %d times, want 2", len(enc.calls))
	}

	// Second run finds the outputs and never touches the encoder.
	enc.calls = nil
	results := seg.Render(context.Background(), "i", "a", clips)
	if len(enc.calls) != 0 {
		t.Errorf("re-run invoked encoder %d times, want 0", len(enc.calls))
	}
	if errs := Failed(results); len(errs) != 0 {
		t.Errorf("re-run reported errors: %v", errs)
	}
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/newsmelody/api/internal/segment"
)

// FFmpegClient shells out to ffmpeg/ffprobe for all media work: probing
// audio duration, compositing the full vertical video, cutting short clips
// and generating the thumbnail frame.
type FFmpegClient struct {
	ffmpegPath  string
	ffprobePath string
}

func NewFFmpegClient() *FFmpegClient {
	return &FFmpegClient{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
	}
}

// IsAvailable reports whether both binaries are on PATH.
func (c *FFmpegClient) IsAvailable() bool {
	if _, err := exec.LookPath(c.ffmpegPath); err != nil {
		return false
	}
	if _, err := exec.LookPath(c.ffprobePath); err != nil {
		return false
	}
	return true
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe returns the duration of a media file in seconds.
func (c *FFmpegClient) Probe(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, c.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}

	duration, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", out.Format.Duration, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("non-positive duration for %s", path)
	}
	return duration, nil
}

// Composite renders the primary video: a still image looped for the length
// of the audio track, with ASS subtitles burned in.
func (c *FFmpegClient) Composite(ctx context.Context, imagePath, audioPath, subtitlePath, outputPath string, width, height int) error {
	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,ass=%s",
		width, height, width, height, escapeFilterPath(subtitlePath),
	)

	args := []string{
		"-y",
		"-loop", "1",
		"-i", imagePath,
		"-i", audioPath,
		"-vf", filter,
		"-c:v", "libx264",
		"-tune", "stillimage",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart",
		outputPath,
	}

	return c.run(ctx, args)
}

// RenderClip cuts one short clip out of the source pair: the audio window
// [Start, Start+Duration) over the still image, letterboxed to the clip's
// vertical frame. Implements segment.ClipEncoder.
func (c *FFmpegClient) RenderClip(ctx context.Context, imagePath, audioPath string, clip segment.Clip) error {
	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		clip.Width, clip.Height, clip.Width, clip.Height,
	)

	args := []string{
		"-y",
		"-loop", "1",
		"-i", imagePath,
		"-ss", formatSeconds(clip.Start),
		"-t", formatSeconds(clip.Duration),
		"-i", audioPath,
		"-vf", filter,
		"-c:v", "libx264",
		"-tune", "stillimage",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart",
		clip.OutputPath,
	}

	return c.run(ctx, args)
}

// Thumbnail draws the session title over a flat background frame.
func (c *FFmpegClient) Thumbnail(ctx context.Context, title, outputPath string, width, height int) error {
	text := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`, `%`, `\%`).Replace(title)
	filter := fmt.Sprintf(
		"drawtext=text='%s':fontcolor=white:fontsize=64:x=(w-text_w)/2:y=(h-text_h)/2",
		text,
	)

	args := []string{
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=0x101828:s=%dx%d:d=1", width, height),
		"-vf", filter,
		"-frames:v", "1",
		outputPath,
	}

	return c.run(ctx, args)
}

func (c *FFmpegClient) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, tailLines(stderr.String(), 5))
	}
	return nil
}

func formatSeconds(secs float64) string {
	return strconv.FormatFloat(secs, 'f', 3, 64)
}

// escapeFilterPath quotes a path for use inside an ffmpeg filter expression,
// where ':' and '\' are separators.
func escapeFilterPath(path string) string {
	escaped := strings.ReplaceAll(path, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `:`, `\:`)
	return "'" + escaped + "'"
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

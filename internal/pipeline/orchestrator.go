// Package pipeline drives a session through its lifecycle one transition at
// a time. Every stage is safe to re-invoke: completed work is detected and
// skipped, so a crashed or failed run resumes by calling Advance again.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/newsmelody/api/internal/model"
	"github.com/newsmelody/api/internal/segment"
	"github.com/newsmelody/api/internal/store"
	"github.com/newsmelody/api/internal/subtitle"
)

// Canonical file names inside a session directory.
const (
	lyricsFile    = "lyrics.txt"
	thumbnailFile = "thumbnail.png"
	srtFile       = "subtitles.srt"
	assFile       = "subtitles.ass"
	videoFile     = "video.mp4"
	clipsDirName  = "clips"
	receiptsFile  = "receipts.json"
)

// audioCandidates are the file names the audio-presence check looks for when
// no audio artifact was registered through the API.
var audioCandidates = []string{"audio.mp3", "audio.wav", "audio.m4a"}

// PublishResult is one completed platform upload as the capability reported
// it back.
type PublishResult struct {
	VideoID    string
	URL        string
	Visibility string
}

// Analyzer is the text-generation capability: judging, restructuring and
// versifying a news item.
type Analyzer interface {
	Evaluate(ctx context.Context, news model.NewsItem) (*model.Evaluation, error)
	Structure(ctx context.Context, news model.NewsItem) (*model.StructuredNews, error)
	GenerateLyrics(ctx context.Context, news model.NewsItem, structured *model.StructuredNews) (string, error)
}

// MediaEncoder is the local media capability. RenderClip doubles as the
// segmenter's encoder.
type MediaEncoder interface {
	Probe(ctx context.Context, path string) (float64, error)
	Composite(ctx context.Context, imagePath, audioPath, subtitlePath, outputPath string, width, height int) error
	RenderClip(ctx context.Context, imagePath, audioPath string, clip segment.Clip) error
	Thumbnail(ctx context.Context, title, outputPath string, width, height int) error
}

// Publisher is the platform upload capability.
type Publisher interface {
	Upload(ctx context.Context, videoPath, title, description string, tags []string) (PublishResult, error)
}

// Archiver mirrors published artifacts into long-term object storage.
// Archival is best-effort and never blocks a transition.
type Archiver interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// Options are the media and segmentation parameters for a run.
type Options struct {
	ShortClipSecs float64
	VideoWidth    int
	VideoHeight   int
	// MaxShorts caps how many clips are published; 0 publishes all.
	MaxShorts int
}

// DefaultOptions returns the standard vertical short-form parameters.
func DefaultOptions() Options {
	return Options{
		ShortClipSecs: 30,
		VideoWidth:    segment.DefaultWidth,
		VideoHeight:   segment.DefaultHeight,
	}
}

// Orchestrator owns all session mutation. Collaborators only return values;
// the orchestrator decides what gets persisted and when.
type Orchestrator struct {
	store     store.Store
	workspace store.Workspace
	analyzer  Analyzer
	encoder   MediaEncoder
	publisher Publisher
	archiver  Archiver
	engine    *subtitle.Engine
	retry     RetryPolicy
	opts      Options

	// runMu guards runLocks. Each session gets one mutex so stages of the
	// same session never execute concurrently while distinct sessions
	// proceed in parallel.
	runMu    sync.Mutex
	runLocks map[string]*sync.Mutex

	// OnStage, when set, is invoked after every successful transition.
	OnStage func(sessionID string, status model.SessionStatus)
}

func NewOrchestrator(s store.Store, ws store.Workspace, analyzer Analyzer, encoder MediaEncoder, publisher Publisher, opts Options) *Orchestrator {
	return &Orchestrator{
		store:     s,
		workspace: ws,
		analyzer:  analyzer,
		encoder:   encoder,
		publisher: publisher,
		engine:    subtitle.NewEngine(),
		retry:     DefaultRetryPolicy(),
		opts:      opts,
		runLocks:  make(map[string]*sync.Mutex),
	}
}

// SetEngine overrides the default subtitle timing parameters.
func (o *Orchestrator) SetEngine(engine *subtitle.Engine) { o.engine = engine }

// SetRetryPolicy overrides the default external-call retry schedule.
func (o *Orchestrator) SetRetryPolicy(p RetryPolicy) { o.retry = p }

// SetArchiver enables best-effort archival of published artifacts.
func (o *Orchestrator) SetArchiver(a Archiver) { o.archiver = a }

// sessionLock returns the mutex serializing runs of one session.
func (o *Orchestrator) sessionLock(id string) *sync.Mutex {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	lock, ok := o.runLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		o.runLocks[id] = lock
	}
	return lock
}

// Advance performs exactly one lifecycle transition. ErrNotYetReady means
// the session is waiting on an external artifact and did not move;
// a *StageError means the attempt failed and the same transition can be
// retried later. The returned session reflects the persisted state.
// Concurrent Advance calls for the same session serialize: the second
// caller blocks until the first transition finishes, then acts on the
// already-advanced record, so no external side effect is repeated.
func (o *Orchestrator) Advance(ctx context.Context, id string) (*model.Session, error) {
	lock := o.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	session, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return session, ErrSessionTerminal
	}

	var stage func(context.Context, *model.Session) error
	switch session.Status {
	case model.StatusCreated:
		stage = o.stageEvaluate
	case model.StatusEvaluated:
		stage = o.stageStructure
	case model.StatusStructured:
		stage = o.stageLyrics
	case model.StatusLyricsReady:
		stage = o.stageDetectAudio
	case model.StatusAudioPresent:
		stage = o.stageSubtitles
	case model.StatusSubtitlesReady:
		stage = o.stageVideo
	case model.StatusVideoReady:
		stage = o.stagePublishPrimary
	case model.StatusPublishedPrimary:
		stage = o.stagePublishShorts
	default:
		return session, fmt.Errorf("unknown session status %q", session.Status)
	}

	from := session.Status
	if err := stage(ctx, session); err != nil {
		if errors.Is(err, ErrNotYetReady) {
			return session, err
		}
		return o.recordFailure(ctx, id, from, err)
	}

	updated, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.OnStage != nil && updated.Status != from {
		o.OnStage(id, updated.Status)
	}
	return updated, nil
}

// Run advances the session until it reaches a terminal state, blocks on an
// external artifact, or a stage fails.
func (o *Orchestrator) Run(ctx context.Context, id string) (*model.Session, error) {
	for {
		session, err := o.Advance(ctx, id)
		if err != nil {
			if errors.Is(err, ErrSessionTerminal) {
				return session, nil
			}
			return session, err
		}
		if session.Status.IsTerminal() {
			return session, nil
		}
		if ctx.Err() != nil {
			return session, ctx.Err()
		}
	}
}

// recordFailure persists the stage error message on the session without
// moving its status, then surfaces the failure as a *StageError.
func (o *Orchestrator) recordFailure(ctx context.Context, id string, stage model.SessionStatus, stageErr error) (*model.Session, error) {
	msg := stageErr.Error()
	session, err := o.store.Update(ctx, id, func(s *model.Session) error {
		s.StageError = &msg
		return nil
	})
	if err != nil {
		log.Printf("[pipeline] session %s: failed to record stage error: %v", id, err)
	}
	return session, &StageError{Stage: stage, Err: stageErr}
}

// transition commits a successful stage: mutate runs against the freshest
// record, the status moves to next and any previous stage error is cleared.
func (o *Orchestrator) transition(ctx context.Context, id string, next model.SessionStatus, mutate func(*model.Session) error) error {
	_, err := o.store.Update(ctx, id, func(s *model.Session) error {
		if mutate != nil {
			if err := mutate(s); err != nil {
				return err
			}
		}
		s.Status = next
		s.StageError = nil
		return nil
	})
	return err
}

func (o *Orchestrator) stageEvaluate(ctx context.Context, session *model.Session) error {
	var eval *model.Evaluation
	err := o.retry.Do(ctx, func() error {
		var err error
		eval, err = o.analyzer.Evaluate(ctx, session.News)
		return err
	})
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	next := model.StatusEvaluated
	if !eval.Suitable {
		next = model.StatusRejected
	}
	return o.transition(ctx, session.ID, next, func(s *model.Session) error {
		s.Evaluation = eval
		return nil
	})
}

func (o *Orchestrator) stageStructure(ctx context.Context, session *model.Session) error {
	var structured *model.StructuredNews
	err := o.retry.Do(ctx, func() error {
		var err error
		structured, err = o.analyzer.Structure(ctx, session.News)
		return err
	})
	if err != nil {
		return fmt.Errorf("structure: %w", err)
	}

	return o.transition(ctx, session.ID, model.StatusStructured, func(s *model.Session) error {
		s.Structured = structured
		return nil
	})
}

func (o *Orchestrator) stageLyrics(ctx context.Context, session *model.Session) error {
	if session.Structured == nil {
		return &ValidationError{Msg: "structured news missing"}
	}

	var lyrics string
	err := o.retry.Do(ctx, func() error {
		var err error
		lyrics, err = o.analyzer.GenerateLyrics(ctx, session.News, session.Structured)
		return err
	})
	if err != nil {
		return fmt.Errorf("generate lyrics: %w", err)
	}
	if len(subtitle.SplitLines(lyrics)) == 0 {
		return fmt.Errorf("generate lyrics: no content lines produced")
	}

	if _, err := o.workspace.EnsureDir(session.ID); err != nil {
		return err
	}
	path := o.workspace.Path(session.ID, lyricsFile)
	if err := os.WriteFile(path, []byte(lyrics), 0o644); err != nil {
		return fmt.Errorf("write lyrics: %w", err)
	}

	return o.transition(ctx, session.ID, model.StatusLyricsReady, func(s *model.Session) error {
		s.SetArtifact(model.ArtifactLyrics, path)
		return nil
	})
}

// AwaitingAudio reports whether the session is parked at lyrics_ready with
// no audio artifact placed yet, through the API or as a bare file drop.
func AwaitingAudio(ws store.Workspace, session *model.Session) bool {
	if session.Status != model.StatusLyricsReady {
		return false
	}
	return audioPath(ws, session) == ""
}

// audioPath locates the session's audio file: the registered artifact when
// playable, otherwise the first non-empty candidate file in the session dir.
func audioPath(ws store.Workspace, session *model.Session) string {
	if path := session.Artifact(model.ArtifactAudio); fileReady(path) {
		return path
	}
	for _, name := range audioCandidates {
		if candidate := ws.Path(session.ID, name); fileReady(candidate) {
			return candidate
		}
	}
	return ""
}

// stageDetectAudio is the human-in-the-loop boundary: the orchestrator never
// produces the audio artifact, it only detects a playable file and advances.
func (o *Orchestrator) stageDetectAudio(ctx context.Context, session *model.Session) error {
	path := audioPath(o.workspace, session)
	if path == "" {
		return ErrNotYetReady
	}

	duration, err := o.encoder.Probe(ctx, path)
	if err != nil {
		return fmt.Errorf("probe audio: %w", err)
	}

	return o.transition(ctx, session.ID, model.StatusAudioPresent, func(s *model.Session) error {
		s.SetArtifact(model.ArtifactAudio, path)
		s.AudioDuration = duration
		return nil
	})
}

func (o *Orchestrator) stageSubtitles(ctx context.Context, session *model.Session) error {
	lyricsPath := session.Artifact(model.ArtifactLyrics)
	if lyricsPath == "" {
		return &ValidationError{Msg: "lyrics artifact missing"}
	}
	data, err := os.ReadFile(lyricsPath)
	if err != nil {
		return fmt.Errorf("read lyrics: %w", err)
	}

	cues, err := o.engine.Cues(string(data), session.AudioDuration)
	if err != nil {
		return fmt.Errorf("time subtitles: %w", err)
	}

	srtPath := o.workspace.Path(session.ID, srtFile)
	assPath := o.workspace.Path(session.ID, assFile)
	if err := os.WriteFile(srtPath, []byte(subtitle.FormatSRT(cues)), 0o644); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}
	if err := os.WriteFile(assPath, []byte(subtitle.FormatASS(cues, subtitle.DefaultStyle())), 0o644); err != nil {
		return fmt.Errorf("write ass: %w", err)
	}

	return o.transition(ctx, session.ID, model.StatusSubtitlesReady, func(s *model.Session) error {
		s.SetArtifact(model.ArtifactSubtitleSRT, srtPath)
		s.SetArtifact(model.ArtifactSubtitleASS, assPath)
		return nil
	})
}

func (o *Orchestrator) stageVideo(ctx context.Context, session *model.Session) error {
	thumbPath := session.Artifact(model.ArtifactThumbnail)
	if !fileReady(thumbPath) {
		thumbPath = o.workspace.Path(session.ID, thumbnailFile)
		if !fileReady(thumbPath) {
			if err := o.encoder.Thumbnail(ctx, session.News.Title, thumbPath, o.opts.VideoWidth, o.opts.VideoHeight); err != nil {
				return fmt.Errorf("render thumbnail: %w", err)
			}
		}
	}

	videoPath := o.workspace.Path(session.ID, videoFile)
	if !fileReady(videoPath) {
		audioPath := session.Artifact(model.ArtifactAudio)
		assPath := session.Artifact(model.ArtifactSubtitleASS)
		if audioPath == "" || assPath == "" {
			return &ValidationError{Msg: "audio or subtitle artifact missing"}
		}
		if err := o.encoder.Composite(ctx, thumbPath, audioPath, assPath, videoPath, o.opts.VideoWidth, o.opts.VideoHeight); err != nil {
			return fmt.Errorf("composite video: %w", err)
		}
	} else {
		log.Printf("[pipeline] session %s: video already rendered, skipping", session.ID)
	}

	return o.transition(ctx, session.ID, model.StatusVideoReady, func(s *model.Session) error {
		s.SetArtifact(model.ArtifactThumbnail, thumbPath)
		s.SetArtifact(model.ArtifactVideo, videoPath)
		return nil
	})
}

func (o *Orchestrator) stagePublishPrimary(ctx context.Context, session *model.Session) error {
	if session.ReceiptFor(model.UploadPrimary, 0) == nil {
		videoPath := session.Artifact(model.ArtifactVideo)
		if videoPath == "" {
			return &ValidationError{Msg: "video artifact missing"}
		}

		var result PublishResult
		err := o.retry.Do(ctx, func() error {
			var err error
			result, err = o.publisher.Upload(ctx, videoPath, session.News.Title, buildDescription(session), publishTags(session))
			return err
		})
		if err != nil {
			return fmt.Errorf("publish primary: %w", err)
		}

		receipt := model.UploadReceipt{
			Kind:       model.UploadPrimary,
			VideoID:    result.VideoID,
			URL:        result.URL,
			Visibility: model.Visibility(result.Visibility),
			UploadedAt: time.Now().UTC(),
		}
		updated, err := o.store.Update(ctx, session.ID, func(s *model.Session) error {
			if s.ReceiptFor(model.UploadPrimary, 0) == nil {
				s.UploadResults = append(s.UploadResults, receipt)
			}
			return nil
		})
		if err != nil {
			return err
		}
		session = updated
	} else {
		log.Printf("[pipeline] session %s: primary already published, skipping", session.ID)
	}

	receiptsPath := o.workspace.Path(session.ID, receiptsFile)
	if err := o.writeReceipts(session, receiptsPath); err != nil {
		return err
	}
	o.archive(ctx, session)

	return o.transition(ctx, session.ID, model.StatusPublishedPrimary, func(s *model.Session) error {
		s.SetArtifact(model.ArtifactReceipts, receiptsPath)
		return nil
	})
}

func (o *Orchestrator) stagePublishShorts(ctx context.Context, session *model.Session) error {
	clipsDir := o.workspace.Path(session.ID, clipsDirName)
	if err := os.MkdirAll(clipsDir, 0o755); err != nil {
		return fmt.Errorf("create clips dir: %w", err)
	}

	clips, err := segment.Plan(session.AudioDuration, o.opts.ShortClipSecs, clipsDir)
	if err != nil {
		return fmt.Errorf("plan clips: %w", err)
	}
	if o.opts.MaxShorts > 0 && len(clips) > o.opts.MaxShorts {
		clips = clips[:o.opts.MaxShorts]
	}
	for i := range clips {
		clips[i].Width = o.opts.VideoWidth
		clips[i].Height = o.opts.VideoHeight
	}

	thumbPath := session.Artifact(model.ArtifactThumbnail)
	audioPath := session.Artifact(model.ArtifactAudio)
	if thumbPath == "" || audioPath == "" {
		return &ValidationError{Msg: "thumbnail or audio artifact missing"}
	}

	segmenter := segment.NewSegmenter(o.encoder)
	results := segmenter.Render(ctx, thumbPath, audioPath, clips)
	if errs := segment.Failed(results); len(errs) > 0 {
		return &PartialFailureError{
			Succeeded: len(results) - len(errs),
			Failed:    len(errs),
			Errs:      errs,
		}
	}

	var uploadErrs []error
	succeeded := 0
	for _, clip := range clips {
		if session.ReceiptFor(model.UploadShort, clip.Index) != nil {
			log.Printf("[pipeline] session %s: short %d already published, skipping", session.ID, clip.Index)
			succeeded++
			continue
		}

		title := fmt.Sprintf("%s (%d/%d)", session.News.Title, clip.Index, len(clips))
		var result PublishResult
		err := o.retry.Do(ctx, func() error {
			var err error
			result, err = o.publisher.Upload(ctx, clip.OutputPath, title, buildDescription(session), publishTags(session))
			return err
		})
		if err != nil {
			uploadErrs = append(uploadErrs, fmt.Errorf("short %d: %w", clip.Index, err))
			continue
		}

		receipt := model.UploadReceipt{
			Kind:       model.UploadShort,
			ClipIndex:  clip.Index,
			VideoID:    result.VideoID,
			URL:        result.URL,
			Visibility: model.Visibility(result.Visibility),
			UploadedAt: time.Now().UTC(),
		}
		// Each receipt is persisted as soon as the upload lands, so a
		// failure further down never loses completed uploads.
		updated, err := o.store.Update(ctx, session.ID, func(s *model.Session) error {
			if s.ReceiptFor(model.UploadShort, clip.Index) == nil {
				s.UploadResults = append(s.UploadResults, receipt)
			}
			return nil
		})
		if err != nil {
			return err
		}
		session = updated
		succeeded++
	}

	receiptsPath := o.workspace.Path(session.ID, receiptsFile)
	if err := o.writeReceipts(session, receiptsPath); err != nil {
		return err
	}

	if len(uploadErrs) > 0 {
		return &PartialFailureError{
			Succeeded: succeeded,
			Failed:    len(uploadErrs),
			Errs:      uploadErrs,
		}
	}

	o.archive(ctx, session)

	return o.transition(ctx, session.ID, model.StatusPublishedShorts, func(s *model.Session) error {
		s.SetArtifact(model.ArtifactClips, clipsDir)
		s.SetArtifact(model.ArtifactReceipts, receiptsPath)
		return nil
	})
}

func (o *Orchestrator) writeReceipts(session *model.Session, path string) error {
	data, err := json.MarshalIndent(session.UploadResults, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal receipts: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write receipts: %w", err)
	}
	return nil
}

// archive mirrors the receipts file and the primary video into object
// storage when an archiver is configured. Failures are logged, never
// surfaced: the local session directory stays authoritative.
func (o *Orchestrator) archive(ctx context.Context, session *model.Session) {
	if o.archiver == nil {
		return
	}

	data, err := json.Marshal(session.UploadResults)
	if err != nil {
		return
	}
	key := fmt.Sprintf("sessions/%s/%s", session.ID, receiptsFile)
	if _, err := o.archiver.Upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		log.Printf("[pipeline] session %s: archive receipts failed: %v", session.ID, err)
	}

	videoPath := session.Artifact(model.ArtifactVideo)
	if !fileReady(videoPath) {
		return
	}
	f, err := os.Open(videoPath)
	if err != nil {
		log.Printf("[pipeline] session %s: archive video failed: %v", session.ID, err)
		return
	}
	defer f.Close()
	key = fmt.Sprintf("sessions/%s/%s", session.ID, videoFile)
	if _, err := o.archiver.Upload(ctx, key, f, "video/mp4"); err != nil {
		log.Printf("[pipeline] session %s: archive video failed: %v", session.ID, err)
	}
}

func fileReady(path string) bool {
	if path == "" {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.Size() > 0
}

func buildDescription(session *model.Session) string {
	var b strings.Builder
	if session.Structured != nil {
		fmt.Fprintf(&b, "%s\n\n", session.Structured.Fact.Summary)
	}
	fmt.Fprintf(&b, "Source: %s (%s)\n", session.News.Source, session.News.Date)
	return b.String()
}

func publishTags(session *model.Session) []string {
	return []string{"news", "song", session.News.Source}
}

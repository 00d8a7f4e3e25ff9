package model

import "time"

// NewsItem is the immutable input snapshot a session is created from.
type NewsItem struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Source string `json:"source"`
	Date   string `json:"date"`
}

// Evaluation holds the suitability verdict for a news item. Written once by
// the evaluation stage.
type Evaluation struct {
	Suitable bool    `json:"suitable"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason"`
}

// StructuredPart is one element of the four-part news representation.
type StructuredPart struct {
	Summary string `json:"summary"`
	Detail  string `json:"detail,omitempty"`
}

// StructuredNews is the fact/meaning/impact/question representation the
// lyric generator works from.
type StructuredNews struct {
	Fact     StructuredPart `json:"fact"`
	Meaning  StructuredPart `json:"meaning"`
	Impact   StructuredPart `json:"impact"`
	Question StructuredPart `json:"question"`
}

// UploadReceipt records one completed platform upload. Receipts are
// append-only and ordered: the primary video first, then shorts by clip index.
type UploadReceipt struct {
	Kind       UploadKind `json:"kind"`
	ClipIndex  int        `json:"clipIndex,omitempty"` // 1-based, shorts only
	VideoID    string     `json:"videoId"`
	URL        string     `json:"url"`
	Visibility Visibility `json:"visibility"`
	UploadedAt time.Time  `json:"uploadedAt"`
}

// Session is one end-to-end pipeline run for a single news item. The record
// is append-mostly: every field is written exactly once by its producing
// stage, except Status, UploadResults and StageError. Only the orchestrator
// mutates a session; collaborators return values.
type Session struct {
	ID     string        `json:"id"`
	Status SessionStatus `json:"status"`

	News       NewsItem        `json:"news"`
	Evaluation *Evaluation     `json:"evaluation,omitempty"`
	Structured *StructuredNews `json:"structured,omitempty"`

	// ArtifactPaths maps artifact kind to an absolute file location. An entry
	// is absent until the producing stage completes; a later-stage path is
	// never populated while the artifact it depends on is missing.
	ArtifactPaths map[ArtifactKind]string `json:"artifactPaths"`

	// AudioDuration is the probed duration of the placed audio artifact, in
	// seconds. Set together with the audio artifact path.
	AudioDuration float64 `json:"audioDuration,omitempty"`

	UploadResults []UploadReceipt `json:"uploadResults,omitempty"`

	// StageError holds the message of the most recent stage failure. Cleared
	// when a later attempt at the same transition succeeds.
	StageError *string `json:"stageError,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Artifact returns the stored path for a kind, or "" when the producing
// stage has not completed.
func (s *Session) Artifact(kind ArtifactKind) string {
	if s.ArtifactPaths == nil {
		return ""
	}
	return s.ArtifactPaths[kind]
}

// SetArtifact records the location of a produced artifact.
func (s *Session) SetArtifact(kind ArtifactKind, path string) {
	if s.ArtifactPaths == nil {
		s.ArtifactPaths = make(map[ArtifactKind]string)
	}
	s.ArtifactPaths[kind] = path
}

// ReceiptFor returns the recorded receipt for an upload kind and clip index
// (index 0 for the primary video), or nil when that upload has not happened.
// The orchestrator uses this to keep re-invoked publish stages idempotent.
func (s *Session) ReceiptFor(kind UploadKind, clipIndex int) *UploadReceipt {
	for i := range s.UploadResults {
		r := &s.UploadResults[i]
		if r.Kind == kind && r.ClipIndex == clipIndex {
			return r
		}
	}
	return nil
}

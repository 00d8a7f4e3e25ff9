package model

// Session lifecycle states. Advancement is strictly one-way; "rejected" is a
// normal terminal outcome reachable only from "created".
type SessionStatus string

const (
	StatusCreated          SessionStatus = "created"
	StatusEvaluated        SessionStatus = "evaluated"
	StatusStructured       SessionStatus = "structured"
	StatusLyricsReady      SessionStatus = "lyrics_ready"
	StatusAudioPresent     SessionStatus = "audio_present"
	StatusSubtitlesReady   SessionStatus = "subtitles_ready"
	StatusVideoReady       SessionStatus = "video_ready"
	StatusPublishedPrimary SessionStatus = "published_primary"
	StatusPublishedShorts  SessionStatus = "published_shorts"
	StatusRejected         SessionStatus = "rejected"
)

// StatusOrder lists the happy-path states in pipeline order.
var StatusOrder = []SessionStatus{
	StatusCreated,
	StatusEvaluated,
	StatusStructured,
	StatusLyricsReady,
	StatusAudioPresent,
	StatusSubtitlesReady,
	StatusVideoReady,
	StatusPublishedPrimary,
	StatusPublishedShorts,
}

// IsTerminal reports whether no further transition exists for the status.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusPublishedShorts || s == StatusRejected
}

// Next returns the happy-path successor of the status, or "" for terminal
// and unknown states.
func (s SessionStatus) Next() SessionStatus {
	for i, st := range StatusOrder {
		if st == s && i+1 < len(StatusOrder) {
			return StatusOrder[i+1]
		}
	}
	return ""
}

// Valid reports whether s is a known lifecycle state.
func (s SessionStatus) Valid() bool {
	if s == StatusRejected {
		return true
	}
	for _, st := range StatusOrder {
		if st == s {
			return true
		}
	}
	return false
}

// Artifact kinds stored in Session.ArtifactPaths.
type ArtifactKind string

const (
	ArtifactLyrics      ArtifactKind = "lyrics"
	ArtifactAudio       ArtifactKind = "audio"
	ArtifactThumbnail   ArtifactKind = "thumbnail"
	ArtifactSubtitleSRT ArtifactKind = "subtitles_srt"
	ArtifactSubtitleASS ArtifactKind = "subtitles_ass"
	ArtifactVideo       ArtifactKind = "video"
	ArtifactClips       ArtifactKind = "clips"
	ArtifactReceipts    ArtifactKind = "receipts"
)

// Upload kinds
type UploadKind string

const (
	UploadPrimary UploadKind = "primary"
	UploadShort   UploadKind = "short"
)

// Visibility values accepted by the upload capability.
type Visibility string

const (
	VisibilityPrivate  Visibility = "private"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPublic   Visibility = "public"
)

package model

// CreateSessionRequest represents the request body for session creation
type CreateSessionRequest struct {
	Title  string `json:"title" validate:"required,min=1,max=300"`
	Body   string `json:"body" validate:"required,min=1"`
	Source string `json:"source" validate:"required,min=1,max=200"`
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
}

// CreateSessionResponse represents the response for session creation
type CreateSessionResponse struct {
	SessionID string        `json:"sessionId"`
	Status    SessionStatus `json:"status"`
}

// AdvanceSessionResponse represents the response for an advance request
type AdvanceSessionResponse struct {
	SessionID string        `json:"sessionId"`
	Status    SessionStatus `json:"status"`
	Enqueued  bool          `json:"enqueued"`
}

// ListSessionsResponse represents the response for session listing
type ListSessionsResponse struct {
	Sessions []*Session `json:"sessions"`
	Count    int        `json:"count"`
}

// AudioUploadResponse represents the response after placing the audio
// artifact for a session.
type AudioUploadResponse struct {
	SessionID string  `json:"sessionId"`
	Path      string  `json:"path"`
	Size      int64   `json:"size"`
	Duration  float64 `json:"duration,omitempty"`
}

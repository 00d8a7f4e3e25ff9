package model

// WebSocket message types
const (
	WSTypeStage    = "stage"
	WSTypeComplete = "complete"
	WSTypeError    = "error"
	WSTypePing     = "ping"
	WSTypePong     = "pong"
)

// WSMessage is one progress event streamed to session subscribers.
type WSMessage struct {
	Type      string        `json:"type"`
	SessionID string        `json:"sessionId"`
	Status    SessionStatus `json:"status,omitempty"`
	Step      string        `json:"step,omitempty"`
	Error     string        `json:"error,omitempty"`
}

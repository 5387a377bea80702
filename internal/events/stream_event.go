package events

type Type string

const (
	StreamStart Type = "stream-start"
	StreamChunk Type = "stream-chunk"
	StreamEnd   Type = "stream-end"
	StreamError Type = "stream-error"
)

// StreamEvent is one lifecycle notification toward the UI layer. Chunk is
// the raw fragment, Content the running full content; Message is only set
// on StreamError.
type StreamEvent struct {
	Type      Type   `json:"type"`
	SessionID string `json:"sessionId"`
	MessageID string `json:"messageId"`
	Chunk     string `json:"chunk,omitempty"`
	Content   string `json:"content,omitempty"`
	Message   string `json:"message,omitempty"`
}

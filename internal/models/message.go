package models

import "github.com/google/uuid"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ImageAttachment carries inline image data for multimodal turns.
// Data is base64 without a data-URI prefix; adapters add their own framing.
type ImageAttachment struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Message is one entry in a session's conversation. Assistant messages are
// created empty with IsStreaming=true, mutated in place (same ID) while
// chunks arrive, and finalized exactly once.
type Message struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"sessionId"`
	Role        Role              `json:"role"`
	Content     string            `json:"content"`
	Images      []ImageAttachment `json:"images,omitempty"`
	Timestamp   ISOTime           `json:"timestamp"`
	IsStreaming bool              `json:"isStreaming"`
}

func NewMessage(sessionID string, role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: Now(),
	}
}

// GenerationOptions are optional per-turn parameters. The image fields are
// only consulted by the task-polling adapter.
type GenerationOptions struct {
	Temperature  *float64 `json:"temperature,omitempty"`
	MaxTokens    *int     `json:"maxTokens,omitempty"`
	ImageSize    string   `json:"imageSize,omitempty"`
	ImageQuality string   `json:"imageQuality,omitempty"`
	ImageStyle   string   `json:"imageStyle,omitempty"`
}

package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChatSession owns its messages: the ordered list is serialized into
// MessagesJSON inside the row, so write order is the stored order and
// deleting the session deletes the conversation with it.
//
// UpdatedAt is managed by the repository, not by GORM, because switching
// a session's config must not count as a content mutation.
type ChatSession struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	ConfigID     string    `gorm:"size:36;index" json:"configId"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	MessagesJSON string    `gorm:"type:text" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false" json:"updatedAt"`
}

func NewChatSession(configID, title string) *ChatSession {
	now := time.Now().UTC()
	return &ChatSession{
		ID:        uuid.NewString(),
		ConfigID:  configID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Messages decodes the embedded message list. An empty column is an empty
// conversation, not an error.
func (s *ChatSession) Messages() ([]Message, error) {
	if s.MessagesJSON == "" {
		return nil, nil
	}
	var msgs []Message
	if err := json.Unmarshal([]byte(s.MessagesJSON), &msgs); err != nil {
		return nil, fmt.Errorf("decode messages for session %s: %w", s.ID, err)
	}
	return msgs, nil
}

func (s *ChatSession) SetMessages(msgs []Message) error {
	if len(msgs) == 0 {
		s.MessagesJSON = "[]"
		return nil
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode messages for session %s: %w", s.ID, err)
	}
	s.MessagesJSON = string(data)
	return nil
}

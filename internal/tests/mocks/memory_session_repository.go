package mocks

import (
	"fmt"
	"sync"
	"time"

	"polychat/internal/models"
	"polychat/internal/repositories"
)

// MemorySessionRepository is a thread-safe in-memory ChatSessionRepository
// for orchestration tests, mirroring the real store's upsert semantics.
type MemorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*models.ChatSession
	order    []string
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]*models.ChatSession)}
}

func (r *MemorySessionRepository) ListAll() ([]models.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ChatSession, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.sessions[id])
	}
	return out, nil
}

func (r *MemorySessionRepository) GetByID(id string) (*models.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (r *MemorySessionRepository) Create(session *models.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session.MessagesJSON == "" {
		session.MessagesJSON = "[]"
	}
	cp := *session
	r.sessions[session.ID] = &cp
	r.order = append(r.order, session.ID)
	return nil
}

func (r *MemorySessionRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *MemorySessionRepository) Rename(id, title string) error {
	return r.update(id, func(s *models.ChatSession) { s.Title = title }, false)
}

func (r *MemorySessionRepository) SwitchConfig(id, configID string) error {
	return r.update(id, func(s *models.ChatSession) { s.ConfigID = configID }, false)
}

func (r *MemorySessionRepository) SaveMessage(sessionID string, msg models.Message) error {
	return r.mutateMessages(sessionID, func(msgs []models.Message) []models.Message {
		for i := range msgs {
			if msgs[i].ID == msg.ID {
				msgs[i] = msg
				return msgs
			}
		}
		return append(msgs, msg)
	})
}

func (r *MemorySessionRepository) DeleteMessage(sessionID, messageID string) error {
	return r.mutateMessages(sessionID, func(msgs []models.Message) []models.Message {
		kept := msgs[:0]
		for _, m := range msgs {
			if m.ID != messageID {
				kept = append(kept, m)
			}
		}
		return kept
	})
}

func (r *MemorySessionRepository) ReplaceMessages(sessionID string, msgs []models.Message) error {
	return r.mutateMessages(sessionID, func([]models.Message) []models.Message {
		return msgs
	})
}

// Messages is a test helper exposing the stored list.
func (r *MemorySessionRepository) Messages(sessionID string) ([]models.Message, error) {
	sess, err := r.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, repositories.ErrNotFound)
	}
	return sess.Messages()
}

func (r *MemorySessionRepository) mutateMessages(sessionID string, fn func([]models.Message) []models.Message) error {
	return r.update(sessionID, func(s *models.ChatSession) {
		msgs, _ := s.Messages()
		_ = s.SetMessages(fn(msgs))
	}, true)
}

func (r *MemorySessionRepository) update(id string, fn func(*models.ChatSession), bump bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, repositories.ErrNotFound)
	}
	fn(sess)
	if bump {
		sess.UpdatedAt = time.Now().UTC()
	}
	return nil
}

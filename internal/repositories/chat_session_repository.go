package repositories

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"polychat/internal/models"
)

type ChatSessionRepository interface {
	ListAll() ([]models.ChatSession, error)
	GetByID(id string) (*models.ChatSession, error)
	Create(session *models.ChatSession) error
	Delete(id string) error
	Rename(id, title string) error
	// SwitchConfig reassigns the session's config without bumping
	// UpdatedAt; switching models is not a content mutation.
	SwitchConfig(id, configID string) error
	// SaveMessage upserts into the owning session: same-id messages are
	// overwritten in place, new ones appended. Bumps UpdatedAt.
	SaveMessage(sessionID string, msg models.Message) error
	DeleteMessage(sessionID, messageID string) error
	// ReplaceMessages swaps the whole ordered list, for truncation on
	// resend. Bumps UpdatedAt.
	ReplaceMessages(sessionID string, msgs []models.Message) error
}

type chatSessionRepository struct {
	db *gorm.DB
}

func NewChatSessionRepository(db *gorm.DB) ChatSessionRepository {
	return &chatSessionRepository{db: db}
}

func (r *chatSessionRepository) ListAll() ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	if err := r.db.Order("updated_at desc").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *chatSessionRepository) GetByID(id string) (*models.ChatSession, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is required")
	}
	var sess models.ChatSession
	if err := r.db.Where("id = ?", id).Take(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sess, nil
}

func (r *chatSessionRepository) Create(session *models.ChatSession) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	if session.MessagesJSON == "" {
		session.MessagesJSON = "[]"
	}
	return r.db.Create(session).Error
}

func (r *chatSessionRepository) Delete(id string) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	// Messages are embedded in the row; deleting the session is the
	// cascade.
	return r.db.Where("id = ?", id).Delete(&models.ChatSession{}).Error
}

func (r *chatSessionRepository) Rename(id, title string) error {
	return r.updateColumns(id, map[string]interface{}{"title": title})
}

func (r *chatSessionRepository) SwitchConfig(id, configID string) error {
	if configID == "" {
		return fmt.Errorf("config id is required")
	}
	return r.updateColumns(id, map[string]interface{}{"config_id": configID})
}

func (r *chatSessionRepository) SaveMessage(sessionID string, msg models.Message) error {
	if msg.ID == "" {
		return fmt.Errorf("message id is required")
	}
	return r.mutateMessages(sessionID, func(msgs []models.Message) ([]models.Message, error) {
		for i := range msgs {
			if msgs[i].ID == msg.ID {
				msgs[i] = msg
				return msgs, nil
			}
		}
		return append(msgs, msg), nil
	})
}

func (r *chatSessionRepository) DeleteMessage(sessionID, messageID string) error {
	return r.mutateMessages(sessionID, func(msgs []models.Message) ([]models.Message, error) {
		kept := msgs[:0]
		for _, m := range msgs {
			if m.ID != messageID {
				kept = append(kept, m)
			}
		}
		return kept, nil
	})
}

func (r *chatSessionRepository) ReplaceMessages(sessionID string, msgs []models.Message) error {
	return r.mutateMessages(sessionID, func([]models.Message) ([]models.Message, error) {
		return msgs, nil
	})
}

// mutateMessages rewrites the embedded list inside a transaction so a
// checkpoint and a concurrent truncation cannot interleave half-written
// rows. Order is preserved exactly as the mutator returns it.
func (r *chatSessionRepository) mutateMessages(sessionID string, fn func([]models.Message) ([]models.Message, error)) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		var sess models.ChatSession
		if err := tx.Where("id = ?", sessionID).Take(&sess).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
			}
			return err
		}
		msgs, err := sess.Messages()
		if err != nil {
			return err
		}
		msgs, err = fn(msgs)
		if err != nil {
			return err
		}
		if err := sess.SetMessages(msgs); err != nil {
			return err
		}
		return tx.Model(&models.ChatSession{}).Where("id = ?", sessionID).
			Updates(map[string]interface{}{
				"messages_json": sess.MessagesJSON,
				"updated_at":    time.Now().UTC(),
			}).Error
	})
}

func (r *chatSessionRepository) updateColumns(id string, cols map[string]interface{}) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	res := r.db.Model(&models.ChatSession{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

package services

import (
	"context"
	"fmt"
	"strings"

	"polychat/internal/models"
	"polychat/internal/repositories"
)

const defaultSessionTitle = "New Chat"

type SessionService interface {
	Startup(ctx context.Context)
	NewSession(configID string) (*models.ChatSession, error)
	List() ([]models.ChatSession, error)
	Get(id string) (*models.ChatSession, error)
	Delete(id string) error
	Rename(id, title string) error
}

type sessionService struct {
	sessions repositories.ChatSessionRepository
	configs  repositories.ModelConfigRepository
	ctx      context.Context
}

func NewSessionService(sessions repositories.ChatSessionRepository, configs repositories.ModelConfigRepository) SessionService {
	return &sessionService{sessions: sessions, configs: configs}
}

func (s *sessionService) Startup(ctx context.Context) {
	s.ctx = ctx
}

// NewSession requires the config to exist at creation time. The stored
// reference is weak: a later config delete leaves it dangling, which the
// orchestrator reports as NotFound on the next turn.
func (s *sessionService) NewSession(configID string) (*models.ChatSession, error) {
	configID = strings.TrimSpace(configID)
	if configID == "" {
		def, err := s.configs.GetDefault()
		if err != nil {
			return nil, err
		}
		if def == nil {
			return nil, fmt.Errorf("no default config available")
		}
		configID = def.ID
	} else {
		cfg, err := s.configs.GetByID(configID)
		if err != nil {
			return nil, err
		}
		if cfg == nil {
			return nil, &NotFoundError{Entity: "config", ID: configID}
		}
	}
	sess := models.NewChatSession(configID, defaultSessionTitle)
	if err := s.sessions.Create(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *sessionService) List() ([]models.ChatSession, error) {
	return s.sessions.ListAll()
}

func (s *sessionService) Get(id string) (*models.ChatSession, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is required")
	}
	sess, err := s.sessions.GetByID(id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, &NotFoundError{Entity: "session", ID: id}
	}
	return sess, nil
}

func (s *sessionService) Delete(id string) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	return s.sessions.Delete(id)
}

func (s *sessionService) Rename(id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title is required")
	}
	return s.sessions.Rename(id, title)
}

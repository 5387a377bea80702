package mocks

import (
	"polychat/internal/models"
)

type ChatSessionRepositoryMock struct {
	ListAllFunc         func() ([]models.ChatSession, error)
	GetByIDFunc         func(id string) (*models.ChatSession, error)
	CreateFunc          func(session *models.ChatSession) error
	DeleteFunc          func(id string) error
	RenameFunc          func(id, title string) error
	SwitchConfigFunc    func(id, configID string) error
	SaveMessageFunc     func(sessionID string, msg models.Message) error
	DeleteMessageFunc   func(sessionID, messageID string) error
	ReplaceMessagesFunc func(sessionID string, msgs []models.Message) error
}

func (m *ChatSessionRepositoryMock) ListAll() ([]models.ChatSession, error) {
	if m.ListAllFunc != nil {
		return m.ListAllFunc()
	}
	return nil, nil
}

func (m *ChatSessionRepositoryMock) GetByID(id string) (*models.ChatSession, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(id)
	}
	return nil, nil
}

func (m *ChatSessionRepositoryMock) Create(session *models.ChatSession) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(session)
	}
	return nil
}

func (m *ChatSessionRepositoryMock) Delete(id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(id)
	}
	return nil
}

func (m *ChatSessionRepositoryMock) Rename(id, title string) error {
	if m.RenameFunc != nil {
		return m.RenameFunc(id, title)
	}
	return nil
}

func (m *ChatSessionRepositoryMock) SwitchConfig(id, configID string) error {
	if m.SwitchConfigFunc != nil {
		return m.SwitchConfigFunc(id, configID)
	}
	return nil
}

func (m *ChatSessionRepositoryMock) SaveMessage(sessionID string, msg models.Message) error {
	if m.SaveMessageFunc != nil {
		return m.SaveMessageFunc(sessionID, msg)
	}
	return nil
}

func (m *ChatSessionRepositoryMock) DeleteMessage(sessionID, messageID string) error {
	if m.DeleteMessageFunc != nil {
		return m.DeleteMessageFunc(sessionID, messageID)
	}
	return nil
}

func (m *ChatSessionRepositoryMock) ReplaceMessages(sessionID string, msgs []models.Message) error {
	if m.ReplaceMessagesFunc != nil {
		return m.ReplaceMessagesFunc(sessionID, msgs)
	}
	return nil
}

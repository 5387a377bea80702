package mocks

import (
	"polychat/internal/models"
)

type ModelConfigRepositoryMock struct {
	ListFunc       func() ([]models.ModelConfig, error)
	GetByIDFunc    func(id string) (*models.ModelConfig, error)
	GetByNameFunc  func(name string) (*models.ModelConfig, error)
	GetDefaultFunc func() (*models.ModelConfig, error)
	CreateFunc     func(cfg *models.ModelConfig) error
	UpdateFunc     func(cfg *models.ModelConfig) error
	DeleteFunc     func(id string) error
	SetDefaultFunc func(id string) error
	CountFunc      func() (int64, error)
}

func (m *ModelConfigRepositoryMock) List() ([]models.ModelConfig, error) {
	if m.ListFunc != nil {
		return m.ListFunc()
	}
	return nil, nil
}

func (m *ModelConfigRepositoryMock) GetByID(id string) (*models.ModelConfig, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(id)
	}
	return nil, nil
}

func (m *ModelConfigRepositoryMock) GetByName(name string) (*models.ModelConfig, error) {
	if m.GetByNameFunc != nil {
		return m.GetByNameFunc(name)
	}
	return nil, nil
}

func (m *ModelConfigRepositoryMock) GetDefault() (*models.ModelConfig, error) {
	if m.GetDefaultFunc != nil {
		return m.GetDefaultFunc()
	}
	return nil, nil
}

func (m *ModelConfigRepositoryMock) Create(cfg *models.ModelConfig) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(cfg)
	}
	return nil
}

func (m *ModelConfigRepositoryMock) Update(cfg *models.ModelConfig) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(cfg)
	}
	return nil
}

func (m *ModelConfigRepositoryMock) Delete(id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(id)
	}
	return nil
}

func (m *ModelConfigRepositoryMock) SetDefault(id string) error {
	if m.SetDefaultFunc != nil {
		return m.SetDefaultFunc(id)
	}
	return nil
}

func (m *ModelConfigRepositoryMock) Count() (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc()
	}
	return 0, nil
}

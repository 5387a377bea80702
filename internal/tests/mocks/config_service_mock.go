package mocks

import (
	"context"

	"polychat/internal/models"
	"polychat/internal/services"
)

type ConfigServiceMock struct {
	ListFunc           func() ([]models.ModelConfig, error)
	GetFunc            func(id string) (*models.ModelConfig, error)
	GetDefaultFunc     func() (*models.ModelConfig, error)
	CreateFunc         func(cfg *models.ModelConfig) (*models.ModelConfig, error)
	UpdateFunc         func(cfg *models.ModelConfig) (*models.ModelConfig, error)
	DeleteFunc         func(id string) error
	SetDefaultFunc     func(id string) error
	TestConnectionFunc func(ctx context.Context, id string) (bool, error)
	ResolveAPIKeyFunc  func(cfg models.ModelConfig) models.ModelConfig
}

func (m *ConfigServiceMock) Startup(ctx context.Context) {}

func (m *ConfigServiceMock) List() ([]models.ModelConfig, error) {
	if m.ListFunc != nil {
		return m.ListFunc()
	}
	return nil, nil
}

func (m *ConfigServiceMock) Get(id string) (*models.ModelConfig, error) {
	if m.GetFunc != nil {
		return m.GetFunc(id)
	}
	return nil, &services.NotFoundError{Entity: "config", ID: id}
}

func (m *ConfigServiceMock) GetDefault() (*models.ModelConfig, error) {
	if m.GetDefaultFunc != nil {
		return m.GetDefaultFunc()
	}
	return nil, nil
}

func (m *ConfigServiceMock) Create(cfg *models.ModelConfig) (*models.ModelConfig, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(cfg)
	}
	return cfg, nil
}

func (m *ConfigServiceMock) Update(cfg *models.ModelConfig) (*models.ModelConfig, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(cfg)
	}
	return cfg, nil
}

func (m *ConfigServiceMock) Delete(id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(id)
	}
	return nil
}

func (m *ConfigServiceMock) SetDefault(id string) error {
	if m.SetDefaultFunc != nil {
		return m.SetDefaultFunc(id)
	}
	return nil
}

func (m *ConfigServiceMock) TestConnection(ctx context.Context, id string) (bool, error) {
	if m.TestConnectionFunc != nil {
		return m.TestConnectionFunc(ctx, id)
	}
	return true, nil
}

func (m *ConfigServiceMock) ResolveAPIKey(cfg models.ModelConfig) models.ModelConfig {
	if m.ResolveAPIKeyFunc != nil {
		return m.ResolveAPIKeyFunc(cfg)
	}
	return cfg
}

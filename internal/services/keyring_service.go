package services

import (
	"errors"

	"github.com/zalando/go-keyring"
)

const keyringService = "polychat"

// KeyringService stores API keys in the OS keyring, keyed by config name,
// so configs can be persisted with an empty apiKey column.
type KeyringService struct{}

func NewKeyringService() *KeyringService {
	return &KeyringService{}
}

func (s *KeyringService) StoreAPIKey(configName, apiKey string) error {
	if configName == "" {
		return errors.New("config name is required")
	}
	if apiKey == "" {
		return errors.New("API key is empty")
	}
	return keyring.Set(keyringService, configName, apiKey)
}

func (s *KeyringService) GetAPIKey(configName string) (string, error) {
	if configName == "" {
		return "", errors.New("config name is required")
	}
	return keyring.Get(keyringService, configName)
}

func (s *KeyringService) DeleteAPIKey(configName string) error {
	if configName == "" {
		return errors.New("config name is required")
	}
	err := keyring.Delete(keyringService, configName)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"polychat/internal/llm"
	"polychat/internal/models"
	"polychat/internal/repositories"
)

// APIKeyStore is the secret backend consulted when a config's stored key
// column is empty.
type APIKeyStore interface {
	GetAPIKey(configName string) (string, error)
}

type ConfigService interface {
	Startup(ctx context.Context)
	List() ([]models.ModelConfig, error)
	Get(id string) (*models.ModelConfig, error)
	GetDefault() (*models.ModelConfig, error)
	Create(cfg *models.ModelConfig) (*models.ModelConfig, error)
	Update(cfg *models.ModelConfig) (*models.ModelConfig, error)
	Delete(id string) error
	SetDefault(id string) error
	TestConnection(ctx context.Context, id string) (bool, error)
	// ResolveAPIKey returns the config with its key filled in from the
	// key store when the stored column is empty.
	ResolveAPIKey(cfg models.ModelConfig) models.ModelConfig
}

// AdapterFactory builds a provider adapter for a config; injectable so
// tests can substitute scripted adapters.
type AdapterFactory func(cfg models.ModelConfig) (llm.Adapter, error)

type configService struct {
	repo       repositories.ModelConfigRepository
	keys       APIKeyStore
	newAdapter AdapterFactory
	ctx        context.Context
}

func NewConfigService(repo repositories.ModelConfigRepository, keys APIKeyStore, factory AdapterFactory) ConfigService {
	if factory == nil {
		factory = llm.New
	}
	return &configService{repo: repo, keys: keys, newAdapter: factory}
}

func (s *configService) Startup(ctx context.Context) {
	s.ctx = ctx
}

func (s *configService) List() ([]models.ModelConfig, error) {
	return s.repo.List()
}

func (s *configService) Get(id string) (*models.ModelConfig, error) {
	if id == "" {
		return nil, fmt.Errorf("config id is required")
	}
	cfg, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, &NotFoundError{Entity: "config", ID: id}
	}
	return cfg, nil
}

func (s *configService) GetDefault() (*models.ModelConfig, error) {
	return s.repo.GetDefault()
}

func (s *configService) Create(cfg *models.ModelConfig) (*models.ModelConfig, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	s.normalize(cfg)
	if err := s.validate(cfg); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetByName(cfg.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("config name %q is already in use", cfg.Name)
	}

	count, err := s.repo.Count()
	if err != nil {
		return nil, err
	}
	wantDefault := cfg.IsDefault || count == 0

	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	// The flip happens in SetDefault's transaction, not on the row
	// itself, so the invariant cannot be bypassed.
	cfg.IsDefault = false
	if err := s.repo.Create(cfg); err != nil {
		return nil, err
	}
	if wantDefault {
		if err := s.repo.SetDefault(cfg.ID); err != nil {
			return nil, err
		}
		cfg.IsDefault = true
	}
	return cfg, nil
}

func (s *configService) Update(cfg *models.ModelConfig) (*models.ModelConfig, error) {
	if cfg == nil || cfg.ID == "" {
		return nil, fmt.Errorf("config id is required")
	}
	current, err := s.repo.GetByID(cfg.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, &NotFoundError{Entity: "config", ID: cfg.ID}
	}
	s.normalize(cfg)
	if err := s.validate(cfg); err != nil {
		return nil, err
	}
	if clash, err := s.repo.GetByName(cfg.Name); err != nil {
		return nil, err
	} else if clash != nil && clash.ID != cfg.ID {
		return nil, fmt.Errorf("config name %q is already in use", cfg.Name)
	}

	wantDefault := cfg.IsDefault
	cfg.IsDefault = current.IsDefault
	cfg.CreatedAt = current.CreatedAt
	if err := s.repo.Update(cfg); err != nil {
		return nil, err
	}
	if wantDefault && !current.IsDefault {
		if err := s.repo.SetDefault(cfg.ID); err != nil {
			return nil, err
		}
		cfg.IsDefault = true
	}
	return cfg, nil
}

func (s *configService) Delete(id string) error {
	cfg, err := s.Get(id)
	if err != nil {
		return err
	}
	wasDefault := cfg.IsDefault
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	if !wasDefault {
		return nil
	}
	// Deleting the default promotes a survivor; deleting the last config
	// leaves none.
	remaining, err := s.repo.List()
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		return nil
	}
	return s.repo.SetDefault(remaining[0].ID)
}

func (s *configService) SetDefault(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	return s.repo.SetDefault(id)
}

func (s *configService) TestConnection(ctx context.Context, id string) (bool, error) {
	cfg, err := s.Get(id)
	if err != nil {
		return false, err
	}
	adapter, err := s.newAdapter(s.ResolveAPIKey(*cfg))
	if err != nil {
		return false, err
	}
	return adapter.CheckCredentials(ctx), nil
}

func (s *configService) ResolveAPIKey(cfg models.ModelConfig) models.ModelConfig {
	if cfg.APIKey != "" || s.keys == nil {
		return cfg
	}
	if key, err := s.keys.GetAPIKey(cfg.Name); err == nil && key != "" {
		cfg.APIKey = key
	}
	return cfg
}

func (s *configService) normalize(cfg *models.ModelConfig) {
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.ModelName = strings.TrimSpace(cfg.ModelName)
	cfg.APIURL = strings.TrimSpace(cfg.APIURL)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
}

// validate collects every violation instead of stopping at the first.
func (s *configService) validate(cfg *models.ModelConfig) error {
	var fields []string
	if cfg.Name == "" {
		fields = append(fields, "name")
	}
	if cfg.ModelName == "" {
		fields = append(fields, "modelName")
	}
	if cfg.APIKey == "" && !s.keyInStore(cfg.Name) {
		fields = append(fields, "apiKey")
	}
	switch cfg.Provider {
	case models.ProviderOpenAI, models.ProviderAnthropic, models.ProviderGemini, models.ProviderImage:
	default:
		fields = append(fields, "provider")
	}
	if cfg.APIURL == "" {
		if llm.DefaultBaseURL(cfg.Provider) == "" {
			fields = append(fields, "apiUrl")
		}
	} else if u, err := url.Parse(cfg.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		fields = append(fields, "apiUrl")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (s *configService) keyInStore(name string) bool {
	if s.keys == nil || name == "" {
		return false
	}
	key, err := s.keys.GetAPIKey(name)
	return err == nil && key != ""
}

package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"polychat/internal/models"
)

// ErrNotFound is returned by write operations whose target row is absent.
// Lookups return (nil, nil) instead.
var ErrNotFound = errors.New("record not found")

type ModelConfigRepository interface {
	List() ([]models.ModelConfig, error)
	GetByID(id string) (*models.ModelConfig, error)
	GetByName(name string) (*models.ModelConfig, error)
	GetDefault() (*models.ModelConfig, error)
	Create(cfg *models.ModelConfig) error
	Update(cfg *models.ModelConfig) error
	Delete(id string) error
	SetDefault(id string) error
	Count() (int64, error)
}

type modelConfigRepository struct {
	db *gorm.DB
}

func NewModelConfigRepository(db *gorm.DB) ModelConfigRepository {
	return &modelConfigRepository{db: db}
}

// List orders explicitly sorted configs first, then the rest by recency.
func (r *modelConfigRepository) List() ([]models.ModelConfig, error) {
	var configs []models.ModelConfig
	res := r.db.Order("sort_order IS NULL, sort_order ASC, updated_at DESC").Find(&configs)
	if res.Error != nil {
		return nil, res.Error
	}
	return configs, nil
}

func (r *modelConfigRepository) GetByID(id string) (*models.ModelConfig, error) {
	if id == "" {
		return nil, fmt.Errorf("config id is required")
	}
	var cfg models.ModelConfig
	if err := r.db.Where("id = ?", id).Take(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *modelConfigRepository) GetByName(name string) (*models.ModelConfig, error) {
	if name == "" {
		return nil, fmt.Errorf("config name is required")
	}
	var cfg models.ModelConfig
	if err := r.db.Where("name = ?", name).Take(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *modelConfigRepository) GetDefault() (*models.ModelConfig, error) {
	var cfg models.ModelConfig
	if err := r.db.Where("is_default = ?", true).Take(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *modelConfigRepository) Create(cfg *models.ModelConfig) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	return r.db.Create(cfg).Error
}

func (r *modelConfigRepository) Update(cfg *models.ModelConfig) error {
	if cfg == nil || cfg.ID == "" {
		return fmt.Errorf("config id is required")
	}
	res := r.db.Model(&models.ModelConfig{}).Where("id = ?", cfg.ID).Select("*").Omit("id", "created_at").Updates(cfg)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("config %s: %w", cfg.ID, ErrNotFound)
	}
	return nil
}

func (r *modelConfigRepository) Delete(id string) error {
	if id == "" {
		return fmt.Errorf("config id is required")
	}
	return r.db.Where("id = ?", id).Delete(&models.ModelConfig{}).Error
}

// SetDefault atomically flips is_default across the whole table so at most
// one config carries it.
func (r *modelConfigRepository) SetDefault(id string) error {
	if id == "" {
		return fmt.Errorf("config id is required")
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ModelConfig{}).
			Where("is_default = ?", true).
			Update("is_default", false).Error; err != nil {
			return err
		}
		res := tx.Model(&models.ModelConfig{}).Where("id = ?", id).Update("is_default", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("config %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

func (r *modelConfigRepository) Count() (int64, error) {
	var n int64
	if err := r.db.Model(&models.ModelConfig{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

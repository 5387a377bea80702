package models

import "time"

// ProviderKind selects the wire protocol an adapter speaks.
type ProviderKind string

const (
	ProviderOpenAI    ProviderKind = "openai"
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderGemini    ProviderKind = "gemini"
	ProviderImage     ProviderKind = "image"
)

// ModelConfig is one configured AI backend. At most one config carries
// IsDefault=true at any time; the repository enforces the flip.
type ModelConfig struct {
	ID        string       `gorm:"primaryKey;size:36" json:"id"`
	Name      string       `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Provider  ProviderKind `gorm:"size:50;not null" json:"provider"`
	APIURL    string       `gorm:"size:1024" json:"apiUrl"`
	ModelName string       `gorm:"size:255;not null" json:"modelName"`
	APIKey    string       `gorm:"size:1024" json:"apiKey"`
	IsDefault bool         `gorm:"not null;default:false" json:"isDefault"`
	SortOrder *int         `gorm:"index" json:"sortOrder,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

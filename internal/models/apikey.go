package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type APIKey struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID       `gorm:"type:uuid;index;not null" json:"user_id"`
	Key         string          `gorm:"type:varchar(255);uniqueIndex;not null" json:"-"`
	Name        string          `gorm:"type:varchar(50);not null" json:"name"`
	IsActive    bool            `gorm:"not null;default:true" json:"is_active"`
	Permissions PermissionSet   `gorm:"type:jsonb" json:"permissions"`
	RateLimit   RateLimitPolicy `gorm:"type:jsonb" json:"rate_limit"`
	UsageCount  int64           `gorm:"not null;default:0" json:"usage_count"`
	LastUsedAt  *time.Time      `json:"last_used_at"`
	ExpiresAt   *time.Time      `json:"expires_at"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (k *APIKey) BeforeCreate(tx *gorm.DB) error {
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}

	now := time.Now()
	if k.CreatedAt.IsZero() {
		k.CreatedAt = now
	}
	if k.UpdatedAt.IsZero() {
		k.UpdatedAt = now
	}

	return nil
}

func (k *APIKey) BeforeUpdate(tx *gorm.DB) error {
	k.UpdatedAt = time.Now()
	return nil
}

func (APIKey) TableName() string {
	return "api_keys"
}

// IsExpired reports whether the key's expiry timestamp is set and strictly
// in the past. A key without an expiry never expires.
func (k *APIKey) IsExpired() bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(time.Now())
}

// KeyPreview redacts a key secret to a short trailing-characters hint.
// The full value is only ever returned once, at creation.
func KeyPreview(key string) string {
	if len(key) <= 8 {
		return "..." + key
	}
	return "..." + key[len(key)-8:]
}

// APIKeyView is the public projection of a key record, with the secret
// redacted to its preview.
type APIKeyView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	KeyPreview  string          `json:"key_preview"`
	IsActive    bool            `json:"is_active"`
	Permissions PermissionSet   `json:"permissions"`
	RateLimit   RateLimitPolicy `json:"rate_limit"`
	UsageCount  int64           `json:"usage_count"`
	LastUsedAt  *time.Time      `json:"last_used_at"`
	ExpiresAt   *time.Time      `json:"expires_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (k *APIKey) PublicView() APIKeyView {
	return APIKeyView{
		ID:          k.ID.String(),
		Name:        k.Name,
		KeyPreview:  KeyPreview(k.Key),
		IsActive:    k.IsActive,
		Permissions: k.Permissions,
		RateLimit:   k.RateLimit,
		UsageCount:  k.UsageCount,
		LastUsedAt:  k.LastUsedAt,
		ExpiresAt:   k.ExpiresAt,
		CreatedAt:   k.CreatedAt,
	}
}

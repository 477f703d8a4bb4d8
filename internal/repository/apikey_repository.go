package repository

import (
	"context"
	"time"

	"github.com/Chain-Proof/chainproofserver/internal/models"
	apierrors "github.com/Chain-Proof/chainproofserver/internal/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type APIKeyRepository interface {
	Create(ctx context.Context, apiKey *models.APIKey) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.APIKey, error)
	GetByIDForUser(ctx context.Context, userID, keyID uuid.UUID) (*models.APIKey, error)
	GetByKey(ctx context.Context, key string) (*models.APIKey, error)
	CountActiveForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	Update(ctx context.Context, key *models.APIKey, fields map[string]interface{}) error
	Delete(ctx context.Context, userID, keyID uuid.UUID) error
	RecordUsage(ctx context.Context, keyID uuid.UUID) error
}

type apiKeyRepository struct {
	db *gorm.DB
}

func NewAPIKeyRepository(db *gorm.DB) APIKeyRepository {
	return &apiKeyRepository{db: db}
}

func (r *apiKeyRepository) Create(ctx context.Context, apiKey *models.APIKey) error {
	result := r.db.WithContext(ctx).Create(apiKey)
	if result.Error != nil {
		return apierrors.Wrap(result.Error, "failed to create API key")
	}
	return nil
}

func (r *apiKeyRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.APIKey, error) {
	var keys []models.APIKey
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&keys)

	if result.Error != nil {
		return nil, apierrors.Wrap(result.Error, "failed to list API keys")
	}

	return keys, nil
}

func (r *apiKeyRepository) GetByIDForUser(ctx context.Context, userID, keyID uuid.UUID) (*models.APIKey, error) {
	var apiKey models.APIKey
	result := r.db.WithContext(ctx).First(&apiKey, "id = ? AND user_id = ?", keyID, userID)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, apierrors.ErrNotFound
		}
		return nil, apierrors.Wrap(result.Error, "failed to get API key by ID")
	}

	return &apiKey, nil
}

func (r *apiKeyRepository) GetByKey(ctx context.Context, key string) (*models.APIKey, error) {
	var apiKey models.APIKey
	result := r.db.WithContext(ctx).First(&apiKey, "key = ?", key)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, apierrors.ErrNotFound
		}
		return nil, apierrors.Wrap(result.Error, "failed to get API key by key")
	}

	return &apiKey, nil
}

func (r *apiKeyRepository) CountActiveForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&count)

	if result.Error != nil {
		return 0, apierrors.Wrap(result.Error, "failed to count active API keys")
	}

	return count, nil
}

func (r *apiKeyRepository) Update(ctx context.Context, key *models.APIKey, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()

	result := r.db.WithContext(ctx).Model(key).Updates(fields)
	if result.Error != nil {
		return apierrors.Wrap(result.Error, "failed to update API key")
	}

	if result.RowsAffected == 0 {
		return apierrors.ErrNotFound
	}

	return nil
}

func (r *apiKeyRepository) Delete(ctx context.Context, userID, keyID uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.APIKey{}, "id = ? AND user_id = ?", keyID, userID)

	if result.Error != nil {
		return apierrors.Wrap(result.Error, "failed to delete API key")
	}

	if result.RowsAffected == 0 {
		return apierrors.ErrNotFound
	}

	return nil
}

// RecordUsage bumps the usage counter and last-used timestamp in a single
// UPDATE so concurrent requests through the same key cannot lose counts.
func (r *apiKeyRepository) RecordUsage(ctx context.Context, keyID uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("id = ?", keyID).
		UpdateColumns(map[string]interface{}{
			"usage_count":  gorm.Expr("usage_count + 1"),
			"last_used_at": time.Now(),
		})

	if result.Error != nil {
		return apierrors.Wrap(result.Error, "failed to record API key usage")
	}

	if result.RowsAffected == 0 {
		return apierrors.ErrNotFound
	}

	return nil
}

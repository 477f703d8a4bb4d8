package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/Chain-Proof/chainproofserver/internal/models"
	apierrors "github.com/Chain-Proof/chainproofserver/internal/pkg/errors"
	"github.com/Chain-Proof/chainproofserver/internal/repository"

	"github.com/google/uuid"
)

const (
	// apiKeyPrefix marks generated secrets so they are recognizable in
	// configuration and logs without revealing anything.
	apiKeyPrefix = "cp_"

	// apiKeyRandomBytes is the entropy of the secret part: 256 bits.
	apiKeyRandomBytes = 32

	// maxActiveKeysPerUser caps how many active keys a user may hold.
	maxActiveKeysPerUser = 10

	maxKeyNameLength = 50
)

type APIKeyService interface {
	GenerateKey() (string, error)
	CreateKey(ctx context.Context, userID uuid.UUID, name string, permissions *models.PermissionSet, expiresInDays int) (*models.APIKey, error)
	ListKeys(ctx context.Context, userID uuid.UUID) ([]models.APIKey, error)
	UpdateKey(ctx context.Context, userID, keyID uuid.UUID, name *string, isActive *bool) (*models.APIKey, error)
	RevokeKey(ctx context.Context, userID, keyID uuid.UUID) error
	VerifyKey(ctx context.Context, rawKey string) (*models.APIKey, error)
	RecordUsage(ctx context.Context, keyID uuid.UUID) error
	CountActiveKeys(ctx context.Context, userID uuid.UUID) (int64, error)
}

type apiKeyService struct {
	apiKeyRepo repository.APIKeyRepository
}

func NewAPIKeyService(apiKeyRepo repository.APIKeyRepository) APIKeyService {
	return &apiKeyService{
		apiKeyRepo: apiKeyRepo,
	}
}

// GenerateKey produces an opaque secret of the form cp_<64 hex chars> from
// a cryptographically secure source. Uniqueness is enforced by the store's
// unique constraint, not here.
func (s *apiKeyService) GenerateKey() (string, error) {
	buf := make([]byte, apiKeyRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", apierrors.Wrap(err, "failed to generate API key")
	}
	return apiKeyPrefix + hex.EncodeToString(buf), nil
}

func (s *apiKeyService) CreateKey(ctx context.Context, userID uuid.UUID, name string, permissions *models.PermissionSet, expiresInDays int) (*models.APIKey, error) {
	if name == "" {
		return nil, apierrors.Validation("name is required")
	}
	if len(name) > maxKeyNameLength {
		return nil, apierrors.Validation("name must be 50 characters or fewer")
	}

	count, err := s.apiKeyRepo.CountActiveForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if count >= maxActiveKeysPerUser {
		return nil, apierrors.Quota("Maximum limit of 10 active API keys reached. Please revoke an existing key before creating a new one.")
	}

	rawKey, err := s.GenerateKey()
	if err != nil {
		return nil, err
	}

	perms := models.DefaultPermissions()
	if permissions != nil {
		perms = *permissions
	}

	var expiresAt *time.Time
	if expiresInDays > 0 {
		t := time.Now().AddDate(0, 0, expiresInDays)
		expiresAt = &t
	}

	apiKey := &models.APIKey{
		ID:          uuid.New(),
		UserID:      userID,
		Key:         rawKey,
		Name:        name,
		IsActive:    true,
		Permissions: perms,
		RateLimit:   models.DefaultRateLimit(),
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := s.apiKeyRepo.Create(ctx, apiKey); err != nil {
		return nil, err
	}

	// The caller sees apiKey.Key in full exactly once, from this return
	// value. Every later read goes through the redacted public view.
	return apiKey, nil
}

func (s *apiKeyService) ListKeys(ctx context.Context, userID uuid.UUID) ([]models.APIKey, error) {
	return s.apiKeyRepo.ListByUser(ctx, userID)
}

func (s *apiKeyService) UpdateKey(ctx context.Context, userID, keyID uuid.UUID, name *string, isActive *bool) (*models.APIKey, error) {
	apiKey, err := s.apiKeyRepo.GetByIDForUser(ctx, userID, keyID)
	if err != nil {
		if err == apierrors.ErrNotFound {
			return nil, apierrors.NotFound("API key not found.")
		}
		return nil, err
	}

	fields := map[string]interface{}{}
	if name != nil {
		if *name == "" {
			return nil, apierrors.Validation("name is required")
		}
		if len(*name) > maxKeyNameLength {
			return nil, apierrors.Validation("name must be 50 characters or fewer")
		}
		fields["name"] = *name
		apiKey.Name = *name
	}
	if isActive != nil {
		fields["is_active"] = *isActive
		apiKey.IsActive = *isActive
	}

	if len(fields) == 0 {
		return apiKey, nil
	}

	if err := s.apiKeyRepo.Update(ctx, apiKey, fields); err != nil {
		if err == apierrors.ErrNotFound {
			// the key can be revoked between the ownership fetch and
			// the update
			return nil, apierrors.NotFound("API key not found.")
		}
		return nil, err
	}

	return apiKey, nil
}

func (s *apiKeyService) RevokeKey(ctx context.Context, userID, keyID uuid.UUID) error {
	err := s.apiKeyRepo.Delete(ctx, userID, keyID)
	if err == apierrors.ErrNotFound {
		// A key owned by someone else is reported exactly like a key
		// that does not exist.
		return apierrors.NotFound("API key not found.")
	}
	return err
}

// VerifyKey resolves a raw key through the store and rejects inactive or
// expired keys. Usage recording is a separate step so callers control when
// a request counts.
func (s *apiKeyService) VerifyKey(ctx context.Context, rawKey string) (*models.APIKey, error) {
	apiKey, err := s.apiKeyRepo.GetByKey(ctx, rawKey)
	if err != nil {
		if err == apierrors.ErrNotFound {
			return nil, apierrors.Auth("Invalid API key.")
		}
		return nil, err
	}

	if !apiKey.IsActive {
		return nil, apierrors.Auth("API key is disabled.")
	}

	if apiKey.IsExpired() {
		return nil, apierrors.Auth("API key has expired.")
	}

	return apiKey, nil
}

func (s *apiKeyService) RecordUsage(ctx context.Context, keyID uuid.UUID) error {
	return s.apiKeyRepo.RecordUsage(ctx, keyID)
}

func (s *apiKeyService) CountActiveKeys(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.apiKeyRepo.CountActiveForUser(ctx, userID)
}

const APIKeyContextKey contextKey = "api_key"

// Helper function to add the verified API key to context
func WithAPIKeyContext(ctx context.Context, key *models.APIKey) context.Context {
	return context.WithValue(ctx, APIKeyContextKey, key)
}

// Helper function to get the verified API key from context
func APIKeyFromContext(ctx context.Context) (*models.APIKey, bool) {
	key, ok := ctx.Value(APIKeyContextKey).(*models.APIKey)
	return key, ok
}

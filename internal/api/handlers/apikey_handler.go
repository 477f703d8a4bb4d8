package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Chain-Proof/chainproofserver/internal/api/render"
	"github.com/Chain-Proof/chainproofserver/internal/models"
	apierrors "github.com/Chain-Proof/chainproofserver/internal/pkg/errors"
	"github.com/Chain-Proof/chainproofserver/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// APIKeyHandler handles the key lifecycle routes for the authenticated user
type APIKeyHandler struct {
	apiKeyService services.APIKeyService
}

func NewAPIKeyHandler(apiKeyService services.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{
		apiKeyService: apiKeyService,
	}
}

type createKeyRequest struct {
	Name          string                `json:"name"`
	Permissions   *models.PermissionSet `json:"permissions"`
	ExpiresInDays int                   `json:"expires_in_days"`
}

type createKeyResponse struct {
	Success bool              `json:"success"`
	Key     string            `json:"key"`
	APIKey  models.APIKeyView `json:"api_key"`
}

type listKeysResponse struct {
	Success bool                `json:"success"`
	APIKeys []models.APIKeyView `json:"api_keys"`
}

type keyResponse struct {
	Success bool              `json:"success"`
	APIKey  models.APIKeyView `json:"api_key"`
}

type revokeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type updateKeyRequest struct {
	Name     *string `json:"name"`
	IsActive *bool   `json:"is_active"`
}

// Create issues a new API key. The plaintext key appears in this response
// and nowhere else.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		render.Error(w, apierrors.Auth("Authorization token is required."))
		return
	}

	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Error(w, apierrors.Validation("Invalid request body."))
		return
	}

	apiKey, err := h.apiKeyService.CreateKey(r.Context(), user.ID, req.Name, req.Permissions, req.ExpiresInDays)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusCreated, createKeyResponse{
		Success: true,
		Key:     apiKey.Key,
		APIKey:  apiKey.PublicView(),
	})
}

// List returns the caller's keys, newest first, secrets redacted.
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		render.Error(w, apierrors.Auth("Authorization token is required."))
		return
	}

	keys, err := h.apiKeyService.ListKeys(r.Context(), user.ID)
	if err != nil {
		render.Error(w, err)
		return
	}

	views := make([]models.APIKeyView, 0, len(keys))
	for i := range keys {
		views = append(views, keys[i].PublicView())
	}

	render.JSON(w, http.StatusOK, listKeysResponse{
		Success: true,
		APIKeys: views,
	})
}

// Update renames a key or toggles its active flag. Only supplied fields
// change.
func (h *APIKeyHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		render.Error(w, apierrors.Auth("Authorization token is required."))
		return
	}

	keyID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		render.Error(w, apierrors.NotFound("API key not found."))
		return
	}

	var req updateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Error(w, apierrors.Validation("Invalid request body."))
		return
	}

	apiKey, err := h.apiKeyService.UpdateKey(r.Context(), user.ID, keyID, req.Name, req.IsActive)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, keyResponse{
		Success: true,
		APIKey:  apiKey.PublicView(),
	})
}

// Revoke permanently deletes a key.
func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		render.Error(w, apierrors.Auth("Authorization token is required."))
		return
	}

	keyID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		render.Error(w, apierrors.NotFound("API key not found."))
		return
	}

	if err := h.apiKeyService.RevokeKey(r.Context(), user.ID, keyID); err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, revokeResponse{
		Success: true,
		Message: "API key revoked.",
	})
}

// Verify is the key-authenticated probe: it reports the key the caller
// presented, after the gate has checked and counted it.
func (h *APIKeyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	apiKey, ok := services.APIKeyFromContext(r.Context())
	if !ok {
		render.Error(w, apierrors.Auth("API key is required."))
		return
	}

	render.JSON(w, http.StatusOK, keyResponse{
		Success: true,
		APIKey:  apiKey.PublicView(),
	})
}

package handlers

import (
	"net/http"

	"github.com/Chain-Proof/chainproofserver/internal/api/render"
	"github.com/Chain-Proof/chainproofserver/internal/models"
	apierrors "github.com/Chain-Proof/chainproofserver/internal/pkg/errors"
	"github.com/Chain-Proof/chainproofserver/internal/services"
)

// UserHandler serves the authenticated user's profile
type UserHandler struct {
	apiKeyService services.APIKeyService
}

func NewUserHandler(apiKeyService services.APIKeyService) *UserHandler {
	return &UserHandler{
		apiKeyService: apiKeyService,
	}
}

type profileResponse struct {
	Success       bool            `json:"success"`
	User          models.UserView `json:"user"`
	ActiveAPIKeys int64           `json:"active_api_keys"`
}

// Me returns the caller's public fields and how many active keys they hold.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		render.Error(w, apierrors.Auth("Authorization token is required."))
		return
	}

	count, err := h.apiKeyService.CountActiveKeys(r.Context(), user.ID)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, profileResponse{
		Success:       true,
		User:          user.PublicView(),
		ActiveAPIKeys: count,
	})
}

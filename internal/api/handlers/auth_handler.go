package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Chain-Proof/chainproofserver/internal/api/render"
	"github.com/Chain-Proof/chainproofserver/internal/models"
	apierrors "github.com/Chain-Proof/chainproofserver/internal/pkg/errors"
	"github.com/Chain-Proof/chainproofserver/internal/services"
)

// AuthHandler handles registration and login requests
type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

type registrationRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Success bool            `json:"success"`
	Token   string          `json:"token"`
	User    models.UserView `json:"user"`
}

// Register creates a user and returns its public fields plus a bearer token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Error(w, apierrors.Validation("Invalid request body."))
		return
	}

	user, token, err := h.authService.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusCreated, authResponse{
		Success: true,
		Token:   token,
		User:    user.PublicView(),
	})
}

// Login authenticates a user and returns a bearer token valid for 7 days.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Error(w, apierrors.Validation("Invalid request body."))
		return
	}

	user, token, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, authResponse{
		Success: true,
		Token:   token,
		User:    user.PublicView(),
	})
}

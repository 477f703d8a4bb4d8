package middleware

import (
	"net/http"
	"strings"

	"github.com/Chain-Proof/chainproofserver/internal/api/render"
	apierrors "github.com/Chain-Proof/chainproofserver/internal/pkg/errors"
	"github.com/Chain-Proof/chainproofserver/internal/services"
)

// AuthMiddleware guards routes with a bearer token. The user is re-fetched
// on every request, so a deactivated account is rejected before its token
// expires.
func AuthMiddleware(authService services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractTokenFromHeader(r)
			if tokenString == "" {
				render.Error(w, apierrors.Auth("Authorization token is required."))
				return
			}

			user, err := authService.VerifyToken(r.Context(), tokenString)
			if err != nil {
				render.Error(w, err)
				return
			}

			ctx := services.WithUserContext(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractTokenFromHeader(r *http.Request) string {
	bearerToken := r.Header.Get("Authorization")
	parts := strings.Split(bearerToken, " ")
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

package middleware

import (
	"net/http"

	"github.com/Chain-Proof/chainproofserver/internal/api/render"
	"github.com/Chain-Proof/chainproofserver/internal/logger"
	apierrors "github.com/Chain-Proof/chainproofserver/internal/pkg/errors"
	"github.com/Chain-Proof/chainproofserver/internal/services"

	"github.com/sirupsen/logrus"
)

// APIKeyMiddleware guards routes with an X-API-Key header. A request only
// counts against the key's usage once it has passed the active, expiry and
// permission checks.
func APIKeyMiddleware(apiKeyService services.APIKeyService, permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawKey := r.Header.Get("X-API-Key")
			if rawKey == "" {
				render.Error(w, apierrors.Auth("API key is required."))
				return
			}

			apiKey, err := apiKeyService.VerifyKey(r.Context(), rawKey)
			if err != nil {
				render.Error(w, err)
				return
			}

			if permission != "" && !apiKey.Permissions.Has(permission) {
				render.Forbidden(w, "API key does not have the required permission.")
				return
			}

			if err := apiKeyService.RecordUsage(r.Context(), apiKey.ID); err != nil {
				// The request already passed authorization; losing one
				// usage tick is preferable to failing it.
				logger.Logger.WithFields(logrus.Fields{
					"error":  err,
					"key_id": apiKey.ID,
				}).Error("Failed to record API key usage")
			}

			ctx := services.WithAPIKeyContext(r.Context(), apiKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

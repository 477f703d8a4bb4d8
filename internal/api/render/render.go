// Package render writes the JSON response envelope shared by every
// handler: {"success": bool, ...} with taxonomy-driven status codes.
package render

import (
	"encoding/json"
	"net/http"

	"github.com/Chain-Proof/chainproofserver/internal/logger"
	apierrors "github.com/Chain-Proof/chainproofserver/internal/pkg/errors"

	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// JSON writes payload with the given status. The payload carries its own
// success flag.
func JSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Logger.WithFields(logrus.Fields{"error": err}).Error("Failed to encode response")
	}
}

// Error maps err through the error taxonomy and writes the envelope. The
// full cause of unexpected errors is logged here and never sent to the
// client.
func Error(w http.ResponseWriter, err error) {
	apiErr := apierrors.AsAPIError(err)
	if apiErr.Kind == apierrors.KindServer {
		logger.Logger.WithFields(logrus.Fields{
			"error": apiErr.Unwrap(),
		}).Error(apiErr.Message)
		apiErr.Message = "An unexpected error occurred."
	}
	JSON(w, apiErr.Status(), errorResponse{Success: false, Error: apiErr.Message})
}

// Forbidden is for authorization failures that are not part of the error
// taxonomy's 401 bucket: the caller is known, the capability is missing.
func Forbidden(w http.ResponseWriter, message string) {
	JSON(w, http.StatusForbidden, errorResponse{Success: false, Error: message})
}

// Package handlers implements the HTTP API: token issue, upload, search,
// history and blob serving.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"imagesearch/internal/middleware"
	"imagesearch/internal/services"
)

// WelcomeMessage is returned by GET /.
const WelcomeMessage = "Welcome to the AI-Powered Image Captioning and Search API!"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps a service error to its HTTP status.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrAuth):
		middleware.Unauthorized(w, "Could not validate credentials")
	case errors.Is(err, services.ErrValidation):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrProcessing):
		writeErrorMessage(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrStorage):
		log.Error("storage failure", zap.Error(err))
		writeErrorMessage(w, http.StatusInternalServerError, err.Error())
	default:
		log.Error("unexpected error", zap.Error(err))
		writeErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}

// Root serves the welcome message.
func Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": WelcomeMessage})
}

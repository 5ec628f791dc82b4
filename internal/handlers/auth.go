package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"imagesearch/internal/logger"
	"imagesearch/internal/middleware"
	"imagesearch/internal/services"
)

// Authenticator issues and verifies bearer tokens.
type Authenticator interface {
	middleware.TokenVerifier
	Login(ctx context.Context, username, password string) (services.Token, error)
}

// AuthHandler serves token issue and the authenticated identity endpoints.
type AuthHandler struct {
	auth Authenticator
	log  *zap.Logger
}

func NewAuthHandler(auth Authenticator, log *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, log: logger.OrNop(log)}
}

// Token exchanges form encoded username and password for a bearer token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid form")
		return
	}
	tok, err := h.auth.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if errors.Is(err, services.ErrAuth) {
		middleware.Unauthorized(w, "Incorrect username or password")
		return
	}
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

// TestAuth confirms that the caller's token is valid.
func (h *AuthHandler) TestAuth(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.Unauthorized(w, "Could not validate credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Authentication successful",
		"user":    user.Username,
	})
}

// Me returns the caller's profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.Unauthorized(w, "Could not validate credentials")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

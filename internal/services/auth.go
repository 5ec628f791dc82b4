package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"imagesearch/internal/logger"
	"imagesearch/internal/models"
)

// TokenCodec signs and parses access tokens. *TokenService implements it.
type TokenCodec interface {
	Issue(username string) (Token, error)
	Parse(raw string) (string, error)
}

// AuthService issues and verifies bearer tokens for the static user table.
type AuthService struct {
	creds  CredentialStore
	tokens TokenCodec
	log    *zap.Logger
}

func NewAuthService(creds CredentialStore, tokens TokenCodec, log *zap.Logger) *AuthService {
	return &AuthService{creds: creds, tokens: tokens, log: logger.OrNop(log)}
}

// Login returns a fresh token. Any credential failure is
// ErrInvalidCredentials; failing to sign the token is a server error.
func (a *AuthService) Login(_ context.Context, username, password string) (Token, error) {
	user, ok := a.creds.Authenticate(username, password)
	if !ok {
		a.log.Info("login failed", zap.String("username", username))
		return Token{}, ErrInvalidCredentials
	}
	tok, err := a.tokens.Issue(user.Username)
	if err != nil {
		return Token{}, fmt.Errorf("issue token: %w", err)
	}
	return tok, nil
}

// Verify resolves a token to its user, or returns ErrInvalidToken.
func (a *AuthService) Verify(_ context.Context, token string) (*models.User, error) {
	subject, err := a.tokens.Parse(token)
	if err != nil {
		a.log.Debug("token rejected", zap.Error(err))
		return nil, ErrInvalidToken
	}
	user, ok := a.creds.Lookup(subject)
	if !ok {
		return nil, ErrInvalidToken
	}
	return user, nil
}

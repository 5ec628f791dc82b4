package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuth(t *testing.T, now *time.Time) *AuthService {
	t.Helper()
	creds, err := NewStaticCredentials(testUsers(t))
	require.NoError(t, err)
	return NewAuthService(creds, newTestTokens(t, now), nil)
}

func TestAuth_LoginVerify(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	auth := newTestAuth(t, &now)

	tok, err := auth.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, TokenTypeBearer, tok.TokenType)
	assert.NotEmpty(t, tok.AccessToken)

	u, err := auth.Verify(context.Background(), tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Username)
	assert.Equal(t, "admin@example.com", u.Email)

	now = now.Add(31 * time.Minute)
	_, err = auth.Verify(context.Background(), tok.AccessToken)
	assert.Same(t, ErrInvalidToken, err)
}

func TestAuth_LoginFailuresIndistinguishable(t *testing.T) {
	now := time.Now()
	auth := newTestAuth(t, &now)

	_, wrongPassword := auth.Login(context.Background(), "admin", "nope")
	_, unknownUser := auth.Login(context.Background(), "nobody", "admin123")

	assert.Same(t, ErrInvalidCredentials, wrongPassword)
	assert.Same(t, ErrInvalidCredentials, unknownUser)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func TestAuth_VerifyRejectsRemovedUser(t *testing.T) {
	now := time.Now()
	tokens := newTestTokens(t, &now)
	tok, err := tokens.Issue("former")
	require.NoError(t, err)

	creds, err := NewStaticCredentials([]UserEntry{{Username: "admin", Password: "x"}})
	require.NoError(t, err)
	auth := NewAuthService(creds, tokens, nil)

	_, err = auth.Verify(context.Background(), tok.AccessToken)
	assert.Same(t, ErrInvalidToken, err)

	_, err = auth.Verify(context.Background(), "garbage")
	assert.Same(t, ErrInvalidToken, err)
}

type failingTokens struct{ err error }

func (f failingTokens) Issue(string) (Token, error)  { return Token{}, f.err }
func (f failingTokens) Parse(string) (string, error) { return "", f.err }

func TestAuth_LoginSigningFailureIsNotAnAuthError(t *testing.T) {
	creds, err := NewStaticCredentials([]UserEntry{{Username: "admin", Password: "admin123"}})
	require.NoError(t, err)
	boom := errors.New("signer offline")
	auth := NewAuthService(creds, failingTokens{err: boom}, nil)

	_, err = auth.Login(context.Background(), "admin", "admin123")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrAuth)
}

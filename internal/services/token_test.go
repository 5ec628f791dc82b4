package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokens(t *testing.T, now *time.Time) *TokenService {
	t.Helper()
	ts, err := NewTokenService([]byte("test-secret"), 30*time.Minute)
	require.NoError(t, err)
	ts.now = func() time.Time { return *now }
	return ts
}

func TestTokenService_IssueAndParse(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ts := newTestTokens(t, &now)

	tok, err := ts.Issue("admin")
	require.NoError(t, err)
	assert.Equal(t, "bearer", tok.TokenType)
	assert.Equal(t, now.Add(30*time.Minute), tok.ExpiresAt)

	sub, err := ts.Parse(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", sub)
}

func TestTokenService_Expiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ts := newTestTokens(t, &now)
	tok, err := ts.Issue("admin")
	require.NoError(t, err)

	now = now.Add(29 * time.Minute)
	_, err = ts.Parse(tok.AccessToken)
	assert.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = ts.Parse(tok.AccessToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokenService_RejectsForeignTokens(t *testing.T) {
	now := time.Now()
	ts := newTestTokens(t, &now)
	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	otherKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "admin"}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"other key": otherKey,
		"wrong alg": wrongAlg,
		"none alg":  unsigned,
		"no exp":    noExp,
		"garbage":   "not.a.token",
		"empty":     "",
	} {
		_, err := ts.Parse(raw)
		assert.Error(t, err, name)
	}
}

func TestNewTokenService_Validation(t *testing.T) {
	_, err := NewTokenService(nil, time.Minute)
	assert.Error(t, err)
	_, err = NewTokenService([]byte("k"), 0)
	assert.Error(t, err)

	secret, err := RandomSecret()
	require.NoError(t, err)
	assert.Len(t, secret, 32)
}

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagesearch/internal/models"
)

type fakeVerifier struct {
	VerifyFunc func(ctx context.Context, token string) (*models.User, error)
}

func (f *fakeVerifier) Verify(ctx context.Context, token string) (*models.User, error) {
	return f.VerifyFunc(ctx, token)
}

func acceptOnly(valid string) *fakeVerifier {
	return &fakeVerifier{VerifyFunc: func(_ context.Context, token string) (*models.User, error) {
		if token != valid {
			return nil, errors.New("bad token")
		}
		return &models.User{Username: "alice"}, nil
	}}
}

// dummyHandler records whether it was called and the user it saw.
type dummyHandler struct {
	called bool
	user   *models.User
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.user, _ = UserFromContext(r.Context())
	w.WriteHeader(http.StatusOK)
}

func TestBearerAuth_ValidHeader(t *testing.T) {
	dummy := &dummyHandler{}
	h := BearerAuth(acceptOnly("good"))(dummy)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, dummy.called)
	require.NotNil(t, dummy.user)
	assert.Equal(t, "alice", dummy.user.Username)
}

func TestBearerAuth_Rejects(t *testing.T) {
	for name, header := range map[string]string{
		"missing":     "",
		"wrong token": "Bearer bad",
		"basic":       "Basic good",
		"no scheme":   "good",
	} {
		t.Run(name, func(t *testing.T) {
			dummy := &dummyHandler{}
			h := BearerAuth(acceptOnly("good"))(dummy)

			req := httptest.NewRequest(http.MethodGet, "/test-auth", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.False(t, dummy.called)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.NotEmpty(t, body["detail"])
		})
	}
}

func TestBearerAuth_InvalidTokenDetail(t *testing.T) {
	h := BearerAuth(acceptOnly("good"))(&dummyHandler{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer nope")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.JSONEq(t, `{"detail":"Could not validate credentials"}`, rec.Body.String())
}

func TestBearerAuth_QueryToken(t *testing.T) {
	dummy := &dummyHandler{}
	h := BearerAuth(acceptOnly("good"), FromHeader, FromQuery("token"))(dummy)

	req := httptest.NewRequest(http.MethodGet, "/ws?token=good", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, dummy.called)

	// query tokens are ignored unless asked for
	dummy = &dummyHandler{}
	h = BearerAuth(acceptOnly("good"))(dummy)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?token=good", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, dummy.called)
}

func TestUserFromContext_Empty(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)
}

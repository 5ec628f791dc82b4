package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"imagesearch/internal/models"
	"imagesearch/internal/services"
)

type fakeSearcher struct {
	SearchFunc  func(ctx context.Context, query string) ([]models.ScoredImage, error)
	HistoryFunc func(ctx context.Context) ([]models.Image, error)
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]models.ScoredImage, error) {
	return f.SearchFunc(ctx, query)
}

func (f *fakeSearcher) History(ctx context.Context) ([]models.Image, error) {
	return f.HistoryFunc(ctx)
}

func TestWriteError_Mapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{&services.Error{Kind: services.ErrValidation, Msg: "bad"}, http.StatusBadRequest},
		{&services.Error{Kind: services.ErrProcessing, Msg: "decode"}, http.StatusUnprocessableEntity},
		{&services.Error{Kind: services.ErrStorage, Msg: "disk", Err: errors.New("full")}, http.StatusInternalServerError},
		{services.ErrInvalidToken, http.StatusUnauthorized},
		{errors.New("surprise"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, zap.NewNop(), tc.err)
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
	}
}

func TestSearchHandler_StorageErrorEchoesMessage(t *testing.T) {
	h := NewSearchHandler(&fakeSearcher{
		SearchFunc: func(context.Context, string) ([]models.ScoredImage, error) {
			return nil, &services.Error{Kind: services.ErrStorage, Msg: "failed to list images", Err: errors.New("db closed")}
		},
	}, nil)

	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/search/?query=cat", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "failed to list images: db closed", body["error"])
}

func TestHistoryHandler_EmptyIsArray(t *testing.T) {
	h := NewSearchHandler(&fakeSearcher{
		HistoryFunc: func(context.Context) ([]models.Image, error) { return nil, nil },
	}, nil)

	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/history/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"images":[]}`, rec.Body.String())
}

type fakeAuthenticator struct {
	LoginFunc func(ctx context.Context, username, password string) (services.Token, error)
}

func (f *fakeAuthenticator) Login(ctx context.Context, username, password string) (services.Token, error) {
	return f.LoginFunc(ctx, username, password)
}

func (f *fakeAuthenticator) Verify(context.Context, string) (*models.User, error) {
	return nil, services.ErrInvalidToken
}

func TestAuthHandler_TokenErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"bad credentials", services.ErrInvalidCredentials, http.StatusUnauthorized},
		{"signing failure", errors.New("issue token: signer offline"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewAuthHandler(&fakeAuthenticator{
				LoginFunc: func(context.Context, string, string) (services.Token, error) {
					return services.Token{}, tc.err
				},
			}, nil)

			req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader("username=admin&password=admin123"))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()
			h.Token(rec, req)

			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

// Package middleware provides HTTP middlewares for bearer authentication,
// request logging and CORS.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"imagesearch/internal/models"
)

type ctxKey string

const userKey ctxKey = "user"

// TokenVerifier resolves a bearer token to the user it was issued for.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.User, error)
}

// TokenExtractor pulls a raw token out of a request, or returns "".
type TokenExtractor func(r *http.Request) string

// FromHeader reads "Authorization: Bearer <token>".
func FromHeader(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// FromQuery reads the token from a query parameter. Browsers cannot set
// headers on websocket handshakes.
func FromQuery(param string) TokenExtractor {
	return func(r *http.Request) string {
		return r.URL.Query().Get(param)
	}
}

// BearerAuth rejects requests without a valid bearer token and stores the
// authenticated user in the request context. Extractors are tried in order;
// with none given only the Authorization header is consulted.
func BearerAuth(v TokenVerifier, extractors ...TokenExtractor) func(http.Handler) http.Handler {
	if len(extractors) == 0 {
		extractors = []TokenExtractor{FromHeader}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string
			for _, extract := range extractors {
				if token = extract(r); token != "" {
					break
				}
			}
			if token == "" {
				Unauthorized(w, "Could not validate credentials")
				return
			}
			user, err := v.Verify(r.Context(), token)
			if err != nil {
				Unauthorized(w, "Could not validate credentials")
				return
			}
			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Unauthorized writes a 401 {"detail": detail} response with a Bearer
// challenge.
func Unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

// UserFromContext returns the user stored by BearerAuth.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok && u != nil
}

package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"imagesearch/internal/middleware"
)

// RouterConfig carries the handlers and settings NewRouter wires together.
type RouterConfig struct {
	Auth   *AuthHandler
	Upload *UploadHandler
	Search *SearchHandler
	Blobs  *BlobHandler
	// Events serves the websocket stream; nil disables /ws.
	Events http.Handler

	Verifier middleware.TokenVerifier
	// RateLimit is the per-IP request budget per minute on authenticated
	// routes. Zero disables limiting.
	RateLimit   int
	CORSOrigins []string
	Logger      *zap.Logger
}

// NewRouter builds the API. Every route except / and /token requires a
// bearer token. Routes are reachable with and without a trailing slash.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.WithRequestLogging(cfg.Logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/", Root)
	both(r.Post, "/token", cfg.Auth.Token)

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.Verifier))
		if cfg.RateLimit > 0 {
			r.Use(httprate.Limit(
				cfg.RateLimit,
				time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
			))
		}

		both(r.Get, "/test-auth", cfg.Auth.TestAuth)
		both(r.Get, "/users/me", cfg.Auth.Me)
		both(r.Post, "/upload", cfg.Upload.Upload)
		both(r.Get, "/search", cfg.Search.Search)
		both(r.Get, "/history", cfg.Search.History)
		r.Get("/images/{key}", cfg.Blobs.Image)
		r.Get("/thumbnails/{key}", cfg.Blobs.Thumbnail)
	})

	if cfg.Events != nil {
		r.With(middleware.BearerAuth(cfg.Verifier, middleware.FromHeader, middleware.FromQuery("token"))).
			Handle("/ws", cfg.Events)
	}

	return r
}

// both registers h for pattern with and without a trailing slash.
func both(method func(string, http.HandlerFunc), pattern string, h http.HandlerFunc) {
	method(pattern, h)
	method(pattern+"/", h)
}

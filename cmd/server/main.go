// Package main starts the image captioning and search API server.
package main

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"imagesearch/internal/blob"
	"imagesearch/internal/config"
	"imagesearch/internal/db"
	"imagesearch/internal/handlers"
	"imagesearch/internal/inference"
	"imagesearch/internal/logger"
	"imagesearch/internal/repository"
	"imagesearch/internal/services"
	"imagesearch/internal/ws"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

type imageStore interface {
	services.ImageStore
	Count(ctx context.Context) (int64, error)
}

func main() {
	opts := config.Parse()

	log, err := logger.New(opts.LogLevel, opts.LogDevelopment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting",
		zap.String("version", cmp.Or(version, "N/A")),
		zap.String("build_date", cmp.Or(buildDate, "N/A")))

	if err := run(opts, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(opts *config.Options, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	conn, err := db.Open(ctx, opts.DatabaseDriver, opts.DatabaseDSN, opts.EmbeddingDim)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()
	store := newImageStore(conn, opts)

	// Blob storage
	blobs, err := newBlobStore(ctx, opts)
	if err != nil {
		return err
	}

	// Models
	models := services.NewModels(newModelLoader(opts))
	if err := models.Init(ctx); err != nil {
		log.Error("models unavailable, uploads degrade and search ranks by caption",
			zap.String("backend", opts.ModelBackend), zap.Error(err))
	}
	defer models.Close()

	// WebSocket hub
	hub := ws.NewHub(log)
	go hub.Run()
	defer hub.Shutdown()

	// Thumbnails
	processor := services.NewThumbnailProcessor(blobs, opts.ThumbnailWorkers, log,
		func(job services.ThumbnailJob, _ string) {
			hub.Broadcast(ws.Event{
				Type:         ws.EventThumbnailReady,
				ID:           job.ImageID,
				Filename:     job.Filename,
				ThumbnailURL: "/thumbnails/" + job.StorageKey,
			})
		})
	defer processor.Shutdown()

	// Auth
	auth, err := newAuthService(opts, log)
	if err != nil {
		return err
	}

	ingestor := services.NewIngestor(store, blobs, models, services.IngestOptions{
		Dim:        opts.EmbeddingDim,
		Strict:     opts.StrictProcessing,
		Thumbnails: processor,
	}, log)
	search := services.NewSearchService(store, models,
		services.NewRanker(opts.EmbeddingDim, log), opts.SearchTopK, log)

	count, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count images: %w", err)
	}
	log.Info("store ready",
		zap.String("driver", opts.DatabaseDriver),
		zap.String("blobs", opts.BlobBackend),
		zap.Int64("images", count))

	// Seeding must finish before the processor and models above shut down.
	var seeding sync.WaitGroup
	defer func() {
		stop()
		seeding.Wait()
	}()
	if opts.SeedDir != "" && count == 0 {
		seeding.Add(1)
		go func() {
			defer seeding.Done()
			n, err := ingestor.SeedDir(ctx, opts.SeedDir)
			if err != nil {
				log.Warn("seeding stopped", zap.Error(err))
			}
			log.Info("seeded images", zap.Int("count", n))
		}()
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Auth:        handlers.NewAuthHandler(auth, log),
		Upload:      handlers.NewUploadHandler(ingestor, hub, opts.MaxUploadBytes, log),
		Search:      handlers.NewSearchHandler(search, log),
		Blobs:       handlers.NewBlobHandler(blobs, log),
		Events:      hub,
		Verifier:    auth,
		RateLimit:   opts.RateLimit,
		CORSOrigins: opts.CORSOrigins,
		Logger:      log,
	})

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", opts.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newImageStore(conn *sql.DB, opts *config.Options) imageStore {
	if opts.DatabaseDriver == db.Postgres {
		return repository.NewPostgresImageRepository(conn, opts.EmbeddingDim)
	}
	return repository.NewSQLiteImageRepository(conn, opts.EmbeddingDim)
}

func newBlobStore(ctx context.Context, opts *config.Options) (blob.Store, error) {
	if opts.BlobBackend == "s3" {
		s, err := blob.NewS3(ctx, blob.S3Config{
			Bucket:          opts.S3.Bucket,
			Region:          opts.S3.Region,
			Endpoint:        opts.S3.Endpoint,
			AccessKeyID:     opts.S3.AccessKeyID,
			SecretAccessKey: opts.S3.SecretAccessKey,
			Prefix:          opts.S3.Prefix,
			UsePathStyle:    opts.S3.UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 blob store: %w", err)
		}
		return s, nil
	}
	l, err := blob.NewLocal(opts.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("local blob store: %w", err)
	}
	return l, nil
}

func newModelLoader(opts *config.Options) services.Loader {
	if opts.ModelBackend != "onnx" {
		return services.LoadBasic(opts.EmbeddingDim)
	}
	return func(ctx context.Context) (services.ModelBackend, error) {
		b, err := inference.Load(ctx, inference.Config{
			Library:  opts.ONNXLibrary,
			ModelDir: opts.ModelDir,
			Dim:      opts.EmbeddingDim,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

func newAuthService(opts *config.Options, log *zap.Logger) (*services.AuthService, error) {
	secret := []byte(opts.JWTSecret)
	if len(secret) == 0 {
		log.Warn("JWT_SECRET not set, tokens will not survive a restart")
		var err error
		if secret, err = services.RandomSecret(); err != nil {
			return nil, err
		}
	}
	tokens, err := services.NewTokenService(secret, time.Duration(opts.TokenTTL))
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	if len(opts.Users) == 0 {
		log.Warn("no users configured, every login will be rejected")
	}
	users := make([]services.UserEntry, 0, len(opts.Users))
	for _, u := range opts.Users {
		users = append(users, services.UserEntry{
			Username:     u.Username,
			Password:     u.Password,
			PasswordHash: u.PasswordHash,
			FullName:     u.FullName,
			Email:        u.Email,
		})
	}
	creds, err := services.NewStaticCredentials(users)
	if err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}
	return services.NewAuthService(creds, tokens, log), nil
}

package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"mime"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"

	"imagesearch/internal/blob"
	"imagesearch/internal/logger"
	"imagesearch/internal/models"
	"imagesearch/internal/vector"
)

// CaptionUnavailable replaces the caption when captioning fails.
const CaptionUnavailable = "caption unavailable"

// ImageStore is the append-only image table.
type ImageStore interface {
	Put(ctx context.Context, img models.Image) (int64, error)
	ListAll(ctx context.Context) ([]models.Image, error)
}

// ModelSet is what ingestion and search need from the models.
type ModelSet interface {
	Captioner
	Embedder
}

// ThumbnailQueue accepts thumbnail work without blocking.
type ThumbnailQueue interface {
	Queue(job ThumbnailJob) bool
}

// IngestOptions tunes an Ingestor.
type IngestOptions struct {
	// Dim is the embedding size the store accepts.
	Dim int
	// Strict turns model failures into processing errors instead of
	// storing a record without caption or embedding.
	Strict bool
	// Thumbnails, when set, receives every stored upload.
	Thumbnails ThumbnailQueue
}

// Ingestor validates uploads, runs the models on them and stores the result.
type Ingestor struct {
	store  ImageStore
	blobs  blob.Store
	models ModelSet
	opts   IngestOptions
	log    *zap.Logger

	newKey func() string
}

func NewIngestor(store ImageStore, blobs blob.Store, m ModelSet, opts IngestOptions, log *zap.Logger) *Ingestor {
	return &Ingestor{
		store:  store,
		blobs:  blobs,
		models: m,
		opts:   opts,
		log:    logger.OrNop(log),
		newKey: uuid.NewString,
	}
}

// Ingest stores one uploaded image. The returned error is a validation,
// processing or storage *Error, or ctx's error when ctx is already done.
func (in *Ingestor) Ingest(ctx context.Context, filename string, raw []byte, contentType string) (models.Image, error) {
	if err := ctx.Err(); err != nil {
		return models.Image{}, err
	}

	mediaType, ok := imageMediaType(contentType)
	if !ok {
		return models.Image{}, validationError("File must be an image")
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return models.Image{}, processingError("cannot decode image", err)
	}

	log := in.log.With(zap.String("filename", filename))

	caption, err := in.models.Caption(ctx, img)
	if err != nil {
		if in.opts.Strict && !errors.Is(err, ErrModelUnavailable) {
			return models.Image{}, processingError("caption failed", err)
		}
		log.Warn("caption unavailable", zap.Error(err))
		caption = CaptionUnavailable
	}

	embedding, err := in.embed(ctx, img)
	if err != nil {
		if in.opts.Strict && !errors.Is(err, ErrModelUnavailable) {
			return models.Image{}, processingError("embedding failed", err)
		}
		log.Warn("embedding unavailable", zap.Error(err))
		embedding = nil
	}

	key := in.newKey() + extension(filename, mediaType)
	if err := in.blobs.Put(ctx, key, mediaType, raw); err != nil {
		return models.Image{}, storageError("failed to save file", err)
	}

	rec := models.Image{
		Filename:    filename,
		StorageKey:  key,
		ContentType: mediaType,
		Size:        int64(len(raw)),
		Caption:     caption,
		Embedding:   embedding,
	}
	id, err := in.store.Put(ctx, rec)
	if err != nil {
		if delErr := in.blobs.Delete(ctx, key); delErr != nil {
			log.Warn("orphaned blob", zap.String("key", key), zap.Error(delErr))
		}
		return models.Image{}, storageError("Failed to save to database", err)
	}
	rec.ID = id

	log.Info("image stored",
		zap.Int64("id", id),
		zap.String("key", key),
		zap.Bool("has_embedding", len(embedding) > 0))

	if in.opts.Thumbnails != nil {
		in.opts.Thumbnails.Queue(ThumbnailJob{
			ImageID:    id,
			StorageKey: key,
			Filename:   filename,
			Data:       raw,
		})
	}
	return rec, nil
}

func (in *Ingestor) embed(ctx context.Context, img image.Image) ([]byte, error) {
	vec, err := in.models.EmbedImage(ctx, img)
	if err != nil {
		return nil, err
	}
	if len(vec) != in.opts.Dim {
		return nil, errors.New("embedding dimension mismatch")
	}
	return vector.Encode(vec), nil
}

// imageMediaType returns the lowercased media type of contentType when it
// names an image.
func imageMediaType(contentType string) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
		mediaType = strings.TrimSpace(mediaType)
	}
	mediaType = strings.ToLower(mediaType)
	return mediaType, strings.HasPrefix(mediaType, "image/")
}

func extension(filename, mediaType string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" && !strings.ContainsAny(ext, `/\`) {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

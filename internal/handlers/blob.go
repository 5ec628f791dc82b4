package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"imagesearch/internal/blob"
	"imagesearch/internal/logger"
)

// BlobHandler serves stored originals and their thumbnails.
type BlobHandler struct {
	blobs blob.Store
	log   *zap.Logger
}

func NewBlobHandler(blobs blob.Store, log *zap.Logger) *BlobHandler {
	return &BlobHandler{blobs: blobs, log: logger.OrNop(log)}
}

// Image serves the original upload stored under {key}.
func (h *BlobHandler) Image(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, chi.URLParam(r, "key"))
}

// Thumbnail serves the thumbnail of {key}; 404 until it has been rendered.
func (h *BlobHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, blob.ThumbnailKey(chi.URLParam(r, "key")))
}

func (h *BlobHandler) serve(w http.ResponseWriter, r *http.Request, key string) {
	rc, contentType, err := h.blobs.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) || errors.Is(err, blob.ErrInvalidKey) {
			writeErrorMessage(w, http.StatusNotFound, "not found")
			return
		}
		h.log.Error("read blob", zap.String("key", key), zap.Error(err))
		writeErrorMessage(w, http.StatusInternalServerError, "failed to read file")
		return
	}
	defer rc.Close()

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "private, max-age=86400")
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Debug("write blob", zap.String("key", key), zap.Error(err))
	}
}

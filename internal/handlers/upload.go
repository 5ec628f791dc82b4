package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"imagesearch/internal/logger"
	"imagesearch/internal/models"
	"imagesearch/internal/ws"
)

const multipartMemory = 32 << 20

// Ingester stores one uploaded image.
type Ingester interface {
	Ingest(ctx context.Context, filename string, raw []byte, contentType string) (models.Image, error)
}

// EventSink receives events for connected clients.
type EventSink interface {
	Broadcast(ev ws.Event)
}

type UploadHandler struct {
	ingester Ingester
	events   EventSink
	maxBytes int64
	log      *zap.Logger
}

// NewUploadHandler returns an upload handler. events may be nil.
func NewUploadHandler(ingester Ingester, events EventSink, maxBytes int64, log *zap.Logger) *UploadHandler {
	return &UploadHandler{
		ingester: ingester,
		events:   events,
		maxBytes: maxBytes,
		log:      logger.OrNop(log),
	}
}

// Upload ingests the multipart field "file".
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorMessage(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeErrorMessage(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, fh, err := r.FormFile("file")
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		writeErrorMessage(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	img, err := h.ingester.Ingest(r.Context(), fh.Filename, raw, fh.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	if h.events != nil {
		h.events.Broadcast(ws.Event{
			Type:     ws.EventImageUploaded,
			ID:       img.ID,
			Filename: img.Filename,
			Caption:  img.Caption,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Image uploaded successfully",
		"id":       img.ID,
		"filename": img.Filename,
		"caption":  img.Caption,
	})
}

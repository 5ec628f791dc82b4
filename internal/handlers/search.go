package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"imagesearch/internal/logger"
	"imagesearch/internal/models"
)

// Searcher answers similarity and history queries.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.ScoredImage, error)
	History(ctx context.Context) ([]models.Image, error)
}

type SearchResult struct {
	ID         int64   `json:"id"`
	Filename   string  `json:"filename"`
	Caption    string  `json:"caption"`
	Similarity float64 `json:"similarity"`
	ImageURL   string  `json:"image_url,omitempty"`
}

type HistoryItem struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	Caption  string `json:"caption"`
	ImageURL string `json:"image_url,omitempty"`
}

type SearchHandler struct {
	searcher Searcher
	log      *zap.Logger
}

func NewSearchHandler(searcher Searcher, log *zap.Logger) *SearchHandler {
	return &SearchHandler{searcher: searcher, log: logger.OrNop(log)}
}

// Search ranks stored images against the "query" parameter.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("query") {
		writeErrorMessage(w, http.StatusBadRequest, "query parameter is required")
		return
	}
	query := q.Get("query")

	scored, err := h.searcher.Search(r.Context(), query)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	results := make([]SearchResult, 0, len(scored))
	for _, s := range scored {
		results = append(results, SearchResult{
			ID:         s.Image.ID,
			Filename:   s.Image.Filename,
			Caption:    s.Image.Caption,
			Similarity: s.Score,
			ImageURL:   imageURL(s.Image),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": results,
	})
}

// History lists every stored image in upload order.
func (h *SearchHandler) History(w http.ResponseWriter, r *http.Request) {
	images, err := h.searcher.History(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	items := make([]HistoryItem, 0, len(images))
	for _, img := range images {
		items = append(items, HistoryItem{
			ID:       img.ID,
			Filename: img.Filename,
			Caption:  img.Caption,
			ImageURL: imageURL(img),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"images": items})
}

func imageURL(img models.Image) string {
	if img.StorageKey == "" || strings.Contains(img.StorageKey, "/") {
		return ""
	}
	return "/images/" + img.StorageKey
}

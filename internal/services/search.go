package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"imagesearch/internal/logger"
	"imagesearch/internal/models"
)

// SearchService answers similarity and history queries over the store.
type SearchService struct {
	store    ImageStore
	embedder Embedder
	ranker   *Ranker
	topK     int
	log      *zap.Logger
}

func NewSearchService(store ImageStore, embedder Embedder, ranker *Ranker, topK int, log *zap.Logger) *SearchService {
	return &SearchService{
		store:    store,
		embedder: embedder,
		ranker:   ranker,
		topK:     topK,
		log:      logger.OrNop(log),
	}
}

// Search ranks stored images against query. When the query cannot be
// embedded the caption fallback ranking is used; images stored without an
// embedding are always ranked by caption.
func (s *SearchService) Search(ctx context.Context, query string) ([]models.ScoredImage, error) {
	images, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, storageError("failed to list images", err)
	}
	if len(images) == 0 {
		return []models.ScoredImage{}, nil
	}

	vec, err := s.embedder.EmbedText(ctx, query)
	if err == nil && len(vec) != s.ranker.Dim {
		err = errors.New("query embedding dimension mismatch")
	}
	if err != nil {
		if !errors.Is(err, ErrModelUnavailable) {
			s.log.Warn("query embedding failed, ranking by caption", zap.Error(err))
		}
		return s.ranker.RankByCaption(query, images, s.topK), nil
	}
	return s.ranker.RankWithFallback(vec, query, images, s.topK), nil
}

// History returns every stored image in upload order.
func (s *SearchService) History(ctx context.Context) ([]models.Image, error) {
	images, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, storageError("failed to list images", err)
	}
	if images == nil {
		images = []models.Image{}
	}
	return images, nil
}

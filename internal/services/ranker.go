package services

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"imagesearch/internal/logger"
	"imagesearch/internal/models"
	"imagesearch/internal/vector"
)

// Caption match scores used when no query embedding is available.
const (
	captionMatchScore = 1.0
	captionMissScore  = 0.1
)

// Ranker orders stored images by similarity to a query.
type Ranker struct {
	Dim int
	log *zap.Logger
}

func NewRanker(dim int, log *zap.Logger) *Ranker {
	return &Ranker{Dim: dim, log: logger.OrNop(log)}
}

// Rank scores every image with a usable embedding by cosine similarity to
// query and returns at most k results, best first. Equal scores keep the
// order of images.
func (r *Ranker) Rank(query []float32, images []models.Image, k int) []models.ScoredImage {
	scored := make([]models.ScoredImage, 0, len(images))
	for _, img := range images {
		if len(img.Embedding) == 0 {
			r.log.Warn("skipping image without embedding", zap.Int64("id", img.ID))
			continue
		}
		if s, ok := r.cosine(query, img); ok {
			scored = append(scored, s)
		}
	}
	return topK(scored, k)
}

// RankWithFallback is Rank, except that images stored without an embedding
// are scored by caption match against text instead of being left out.
func (r *Ranker) RankWithFallback(query []float32, text string, images []models.Image, k int) []models.ScoredImage {
	q := strings.ToLower(text)
	scored := make([]models.ScoredImage, 0, len(images))
	for _, img := range images {
		if len(img.Embedding) == 0 {
			scored = append(scored, models.ScoredImage{Image: img, Score: captionScore(q, img.Caption)})
			continue
		}
		if s, ok := r.cosine(query, img); ok {
			scored = append(scored, s)
		}
	}
	return topK(scored, k)
}

func (r *Ranker) cosine(query []float32, img models.Image) (models.ScoredImage, bool) {
	emb, err := vector.DecodeDim(img.Embedding, r.Dim)
	if err != nil {
		r.log.Warn("skipping image with malformed embedding",
			zap.Int64("id", img.ID),
			zap.String("filename", img.Filename),
			zap.Error(err))
		return models.ScoredImage{}, false
	}
	return models.ScoredImage{Image: img, Score: vector.Cosine(query, emb)}, true
}

// RankByCaption is the fallback ranking: a case-insensitive substring match
// of query in the caption scores high, anything else scores low.
func (r *Ranker) RankByCaption(query string, images []models.Image, k int) []models.ScoredImage {
	q := strings.ToLower(query)
	scored := make([]models.ScoredImage, 0, len(images))
	for _, img := range images {
		scored = append(scored, models.ScoredImage{Image: img, Score: captionScore(q, img.Caption)})
	}
	return topK(scored, k)
}

// captionScore expects q already lowercased.
func captionScore(q, caption string) float64 {
	if strings.Contains(strings.ToLower(caption), q) {
		return captionMatchScore
	}
	return captionMissScore
}

func topK(scored []models.ScoredImage, k int) []models.ScoredImage {
	if k <= 0 {
		return []models.ScoredImage{}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

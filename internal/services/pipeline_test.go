package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagesearch/internal/blob"
	"imagesearch/internal/db"
	"imagesearch/internal/repository"
)

func TestPipeline_UploadListSearchWithFallback(t *testing.T) {
	ctx := context.Background()
	const dim = 512

	conn, err := db.Open(ctx, db.SQLite, ":memory:", dim)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	store := repository.NewSQLiteImageRepository(conn, dim)

	blobs, err := blob.NewLocal(t.TempDir())
	require.NoError(t, err)

	m := NewModels(LoadBasic(dim))
	require.NoError(t, m.Init(ctx))

	in := NewIngestor(store, blobs, m, IngestOptions{Dim: dim}, nil)
	search := NewSearchService(store, m, NewRanker(dim, nil), 3, nil)

	a, err := in.Ingest(ctx, "red.jpg", redJPEG(t), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "An image with dimensions 100x100 pixels", a.Caption)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "red.jpg", all[0].Filename)
	assert.Empty(t, all[0].Embedding)

	_, err = in.Ingest(ctx, "blue.png", bluePNG(t, 40, 20), "image/png")
	require.NoError(t, err)

	results, err := search.Search(ctx, "100X100")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "red.jpg", results[0].Image.Filename)
	assert.Greater(t, results[0].Score, results[1].Score)

	history, err := search.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, []string{"red.jpg", "blue.png"}, []string{history[0].Filename, history[1].Filename})
}

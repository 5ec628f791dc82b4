package repository

import (
	"context"
	"database/sql"
	"fmt"

	pgvector "github.com/pgvector/pgvector-go"

	"imagesearch/internal/models"
	"imagesearch/internal/vector"
)

// PostgresImageRepository stores images in PostgreSQL. Embeddings live in a
// pgvector column; an unavailable embedding is stored as NULL.
type PostgresImageRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
	// Dim is the embedding dimension every stored vector must have.
	Dim int
}

// NewPostgresImageRepository creates a repository over a migrated database
// opened with the pgx driver.
func NewPostgresImageRepository(db *sql.DB, dim int) *PostgresImageRepository {
	return &PostgresImageRepository{DB: db, Dim: dim}
}

// Put appends img and returns its assigned id. img.ID is ignored.
func (r *PostgresImageRepository) Put(ctx context.Context, img models.Image) (int64, error) {
	if err := checkEmbedding(img.Embedding, r.Dim); err != nil {
		return 0, err
	}

	var emb any
	if len(img.Embedding) > 0 {
		v, err := vector.Decode(img.Embedding)
		if err != nil {
			return 0, err
		}
		emb = pgvector.NewVector(v)
	}

	var id int64
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO images (filename, storage_key, content_type, size, caption, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, img.Filename, img.StorageKey, img.ContentType, img.Size, img.Caption, emb).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert image: %w", err)
	}
	return id, nil
}

// ListAll returns every stored image in insertion order, with embeddings
// re-encoded to the byte layout used by the rest of the service.
func (r *PostgresImageRepository) ListAll(ctx context.Context) ([]models.Image, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, filename, storage_key, content_type, size, caption, embedding
		FROM images
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	var images []models.Image
	for rows.Next() {
		var (
			img models.Image
			emb *pgvector.Vector
		)
		if err := rows.Scan(&img.ID, &img.Filename, &img.StorageKey, &img.ContentType,
			&img.Size, &img.Caption, &emb); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if emb != nil {
			img.Embedding = vector.Encode(emb.Slice())
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	return images, nil
}

// Count returns the number of stored images.
func (r *PostgresImageRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return n, nil
}

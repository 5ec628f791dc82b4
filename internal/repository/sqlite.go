package repository

import (
	"context"
	"database/sql"
	"fmt"

	"imagesearch/internal/models"
)

// SQLiteImageRepository stores images in a SQLite table with the embedding
// kept as a raw BLOB.
type SQLiteImageRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
	// Dim is the embedding dimension every stored vector must have.
	Dim int
}

// NewSQLiteImageRepository creates a repository over an already migrated
// SQLite database.
func NewSQLiteImageRepository(db *sql.DB, dim int) *SQLiteImageRepository {
	return &SQLiteImageRepository{DB: db, Dim: dim}
}

// Put appends img and returns its assigned id. img.ID is ignored.
func (r *SQLiteImageRepository) Put(ctx context.Context, img models.Image) (int64, error) {
	if err := checkEmbedding(img.Embedding, r.Dim); err != nil {
		return 0, err
	}
	emb := img.Embedding
	if emb == nil {
		emb = []byte{}
	}

	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO images (filename, storage_key, content_type, size, caption, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
	`, img.Filename, img.StorageKey, img.ContentType, img.Size, img.Caption, emb)
	if err != nil {
		return 0, fmt.Errorf("insert image: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// ListAll returns every stored image in insertion order.
func (r *SQLiteImageRepository) ListAll(ctx context.Context) ([]models.Image, error) {
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
		var img models.Image
		if err := rows.Scan(&img.ID, &img.Filename, &img.StorageKey, &img.ContentType,
			&img.Size, &img.Caption, &img.Embedding); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	return images, nil
}

// Count returns the number of stored images.
func (r *SQLiteImageRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return n, nil
}

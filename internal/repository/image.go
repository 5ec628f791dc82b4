// Package repository provides persistence implementations for the image
// store: an append-only table of (id, filename, caption, embedding) rows.
package repository

import (
	"errors"
	"fmt"

	"imagesearch/internal/vector"
)

// ErrEmbeddingSize is returned by Put when a non-empty embedding does not
// match the configured dimension of the deployment.
var ErrEmbeddingSize = errors.New("embedding size does not match store dimension")

// checkEmbedding accepts empty buffers (embedding unavailable) and buffers of
// exactly dim float32 values.
func checkEmbedding(b []byte, dim int) error {
	if len(b) == 0 || len(b) == vector.ByteLen(dim) {
		return nil
	}
	return fmt.Errorf("%w: got %d bytes, want %d", ErrEmbeddingSize, len(b), vector.ByteLen(dim))
}

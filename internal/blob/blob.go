// Package blob stores the raw bytes of uploaded images and their
// thumbnails under opaque keys.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

var (
	// ErrNotFound is returned by Get when no object exists for the key.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidKey is returned for keys that are empty or could escape the
	// store namespace.
	ErrInvalidKey = errors.New("invalid blob key")
)

// Store is implemented by every blob backend.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}

// ThumbnailKey is the key under which the thumbnail of key is stored.
func ThumbnailKey(key string) string {
	return "thumbnails/" + strings.TrimSuffix(key, path.Ext(key)) + ".jpg"
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

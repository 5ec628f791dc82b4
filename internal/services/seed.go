package services

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// SeedDir ingests every image file directly inside dir, typed by file
// extension. Files that fail ingestion are logged and skipped. It returns
// the number of images stored. It stops early with ctx's error when ctx is
// done.
func (in *Ingestor) SeedDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read seed dir: %w", err)
	}

	stored := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		if e.IsDir() {
			continue
		}
		ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(e.Name())))
		if _, ok := imageMediaType(ct); !ok {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return stored, fmt.Errorf("read seed image: %w", err)
		}
		if _, err := in.Ingest(ctx, e.Name(), raw, ct); err != nil {
			in.log.Warn("seed image skipped", zap.String("filename", e.Name()), zap.Error(err))
			continue
		}
		stored++
	}
	return stored, nil
}

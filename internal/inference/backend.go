// Package inference runs CLIP and BLIP models exported to ONNX through
// ONNX Runtime.
package inference

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"reflect"

	ort "github.com/yalue/onnxruntime_go"
)

// Config locates the runtime library and model files.
type Config struct {
	Library  string
	ModelDir string
	Dim      int
}

// Backend is a loaded caption and embedding model set.
type Backend struct {
	clip *CLIP
	blip *BLIP
}

// Load initializes the ONNX environment and opens every model in
// cfg.ModelDir. Expected files: clip_vision.onnx, clip_text.onnx,
// clip_tokenizer.json, blip_vision.onnx, blip_decoder.onnx and
// blip_tokenizer.json.
func Load(ctx context.Context, cfg Config) (*Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ort.IsInitialized() {
		ort.SetSharedLibraryPath(cfg.Library)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("init onnx: %w", err)
		}
	}

	dir := cfg.ModelDir
	clip, err := NewCLIP(
		filepath.Join(dir, "clip_vision.onnx"),
		filepath.Join(dir, "clip_text.onnx"),
		filepath.Join(dir, "clip_tokenizer.json"),
		cfg.Dim,
	)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("clip: %w", err)
	}
	blip, err := NewBLIP(DefaultBLIPConfig(dir))
	if err != nil {
		clip.Close()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("blip: %w", err)
	}
	return &Backend{clip: clip, blip: blip}, nil
}

func (b *Backend) Caption(ctx context.Context, img image.Image) (string, error) {
	return b.blip.Caption(ctx, img)
}

func (b *Backend) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	return b.clip.EmbedImage(ctx, img)
}

func (b *Backend) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return b.clip.EmbedText(ctx, text)
}

func (b *Backend) Dimension() int { return b.clip.Dimension() }

// Close releases every session and tensor and tears down the environment.
func (b *Backend) Close() error {
	b.blip.Close()
	b.clip.Close()
	return ort.DestroyEnvironment()
}

type destroyer interface {
	Destroy() error
}

// destroy releases each non-nil handle.
func destroy(handles ...destroyer) {
	for _, h := range handles {
		if v := reflect.ValueOf(h); !v.IsValid() || v.IsNil() {
			continue
		}
		h.Destroy()
	}
}

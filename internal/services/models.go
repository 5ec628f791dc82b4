package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
)

// ErrModelUnavailable is returned by model operations the active backend
// cannot serve, or before Init has succeeded.
var ErrModelUnavailable = errors.New("model unavailable")

// Captioner produces a natural language caption for an image.
type Captioner interface {
	Caption(ctx context.Context, img image.Image) (string, error)
}

// Embedder maps images and text into a shared vector space.
type Embedder interface {
	EmbedImage(ctx context.Context, img image.Image) ([]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// ModelBackend is a loaded set of models.
type ModelBackend interface {
	Captioner
	Embedder
	Close() error
}

// Loader opens a model backend. It is called at most once per Models.
type Loader func(ctx context.Context) (ModelBackend, error)

// Models is the process wide model handle. It is created unloaded and
// initialized explicitly by bootstrap.
type Models struct {
	load Loader

	once sync.Once
	err  error

	mu      sync.RWMutex
	backend ModelBackend
	closed  bool

	closeOnce sync.Once
}

// NewModels returns an unloaded handle around load.
func NewModels(load Loader) *Models {
	return &Models{load: load}
}

// Init loads the backend. Only the first call does any work; later calls
// return the first call's result.
func (m *Models) Init(ctx context.Context) error {
	m.once.Do(func() {
		b, err := m.load(ctx)
		if err != nil {
			m.err = fmt.Errorf("load models: %w", err)
			return
		}
		m.mu.Lock()
		m.backend = b
		m.mu.Unlock()
	})
	return m.err
}

// use runs fn against the loaded backend. Close waits for running calls,
// and calls made after Close get ErrModelUnavailable.
func (m *Models) use(fn func(b ModelBackend) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.backend == nil || m.closed {
		return ErrModelUnavailable
	}
	return fn(m.backend)
}

func (m *Models) Caption(ctx context.Context, img image.Image) (caption string, err error) {
	err = m.use(func(b ModelBackend) error {
		caption, err = b.Caption(ctx, img)
		return err
	})
	return caption, err
}

func (m *Models) EmbedImage(ctx context.Context, img image.Image) (vec []float32, err error) {
	err = m.use(func(b ModelBackend) error {
		vec, err = b.EmbedImage(ctx, img)
		return err
	})
	return vec, err
}

func (m *Models) EmbedText(ctx context.Context, text string) (vec []float32, err error) {
	err = m.use(func(b ModelBackend) error {
		vec, err = b.EmbedText(ctx, text)
		return err
	})
	return vec, err
}

// Dimension reports the embedding size, or 0 when nothing is loaded.
func (m *Models) Dimension() int {
	dim := 0
	_ = m.use(func(b ModelBackend) error {
		dim = b.Dimension()
		return nil
	})
	return dim
}

// Close releases the backend once no call is using it. Safe to call more
// than once.
func (m *Models) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.closed = true
		if m.backend != nil {
			err = m.backend.Close()
		}
	})
	return err
}

// BasicModels captions from image geometry and has no embedder. Search falls
// back to caption matching when it is active.
type BasicModels struct {
	Dim int
}

// LoadBasic is the Loader for BasicModels.
func LoadBasic(dim int) Loader {
	return func(context.Context) (ModelBackend, error) {
		return &BasicModels{Dim: dim}, nil
	}
}

func (b *BasicModels) Caption(_ context.Context, img image.Image) (string, error) {
	size := img.Bounds().Size()
	return fmt.Sprintf("An image with dimensions %dx%d pixels", size.X, size.Y), nil
}

func (b *BasicModels) EmbedImage(context.Context, image.Image) ([]float32, error) {
	return nil, ErrModelUnavailable
}

func (b *BasicModels) EmbedText(context.Context, string) ([]float32, error) {
	return nil, ErrModelUnavailable
}

func (b *BasicModels) Dimension() int { return b.Dim }

func (b *BasicModels) Close() error { return nil }

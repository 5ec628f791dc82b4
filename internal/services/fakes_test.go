package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"imagesearch/internal/models"
)

type fakeStore struct {
	PutFunc     func(ctx context.Context, img models.Image) (int64, error)
	ListAllFunc func(ctx context.Context) ([]models.Image, error)
}

func (f *fakeStore) Put(ctx context.Context, img models.Image) (int64, error) {
	return f.PutFunc(ctx, img)
}

func (f *fakeStore) ListAll(ctx context.Context) ([]models.Image, error) {
	return f.ListAllFunc(ctx)
}

// memStore is an in-memory ImageStore.
type memStore struct {
	images []models.Image
}

func (m *memStore) Put(_ context.Context, img models.Image) (int64, error) {
	img.ID = int64(len(m.images) + 1)
	m.images = append(m.images, img)
	return img.ID, nil
}

func (m *memStore) ListAll(context.Context) ([]models.Image, error) {
	return append([]models.Image(nil), m.images...), nil
}

type fakeModels struct {
	CaptionFunc    func(ctx context.Context, img image.Image) (string, error)
	EmbedImageFunc func(ctx context.Context, img image.Image) ([]float32, error)
	EmbedTextFunc  func(ctx context.Context, text string) ([]float32, error)
	Dim            int
	closed         int
}

func (f *fakeModels) Caption(ctx context.Context, img image.Image) (string, error) {
	return f.CaptionFunc(ctx, img)
}

func (f *fakeModels) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	return f.EmbedImageFunc(ctx, img)
}

func (f *fakeModels) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return f.EmbedTextFunc(ctx, text)
}

func (f *fakeModels) Dimension() int { return f.Dim }

func (f *fakeModels) Close() error {
	f.closed++
	return nil
}

type fakeBlobs struct {
	PutFunc    func(ctx context.Context, key, contentType string, data []byte) error
	DeleteFunc func(ctx context.Context, key string) error
}

func (f *fakeBlobs) Put(ctx context.Context, key, contentType string, data []byte) error {
	return f.PutFunc(ctx, key, contentType, data)
}

func (f *fakeBlobs) Get(context.Context, string) (io.ReadCloser, string, error) {
	return nil, "", io.EOF
}

func (f *fakeBlobs) Delete(ctx context.Context, key string) error {
	return f.DeleteFunc(ctx, key)
}

type fakeQueue struct {
	jobs []ThumbnailJob
}

func (q *fakeQueue) Queue(job ThumbnailJob) bool {
	q.jobs = append(q.jobs, job)
	return true
}

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func redJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solidImage(100, 100, color.RGBA{R: 255, A: 255}), nil))
	return buf.Bytes()
}

func bluePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solidImage(w, h, color.RGBA{B: 255, A: 255})))
	return buf.Bytes()
}

package services

import (
	"context"
	"image"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagesearch/internal/blob"
)

func TestThumbnailProcessor_StoresThumbnail(t *testing.T) {
	blobs, err := blob.NewLocal(t.TempDir())
	require.NoError(t, err)

	var mu sync.Mutex
	var done []string
	p := NewThumbnailProcessor(blobs, 2, nil, func(job ThumbnailJob, key string) {
		mu.Lock()
		defer mu.Unlock()
		done = append(done, key)
	})

	assert.True(t, p.Queue(ThumbnailJob{ImageID: 1, StorageKey: "abc.png", Data: bluePNG(t, 800, 400)}))
	assert.True(t, p.Queue(ThumbnailJob{ImageID: 2, StorageKey: "bad.png", Data: []byte("junk")}))
	p.Shutdown()
	p.Shutdown()

	mu.Lock()
	assert.Equal(t, []string{"thumbnails/abc.jpg"}, done)
	mu.Unlock()

	rc, ct, err := blobs.Get(context.Background(), "thumbnails/abc.jpg")
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "image/jpeg", ct)

	thumb, err := imaging.Decode(rc)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(512, 512), thumb.Bounds().Size())
}

func TestThumbnailProcessor_QueueFull(t *testing.T) {
	block := make(chan struct{})
	blobs := &fakeBlobs{PutFunc: func(context.Context, string, string, []byte) error {
		<-block
		return nil
	}}
	p := NewThumbnailProcessor(blobs, 1, nil, nil)

	job := ThumbnailJob{StorageKey: "k.png", Data: bluePNG(t, 2, 2)}
	accepted := 0
	for i := 0; i < thumbnailQueue+5; i++ {
		if p.Queue(job) {
			accepted++
		}
	}
	// one job may already be with the worker
	assert.GreaterOrEqual(t, accepted, thumbnailQueue)
	assert.LessOrEqual(t, accepted, thumbnailQueue+1)

	close(block)
	p.Shutdown()
}

func TestThumbnailProcessor_QueueAfterShutdown(t *testing.T) {
	blobs, err := blob.NewLocal(t.TempDir())
	require.NoError(t, err)
	p := NewThumbnailProcessor(blobs, 1, nil, nil)
	p.Shutdown()

	assert.NotPanics(t, func() {
		assert.False(t, p.Queue(ThumbnailJob{ImageID: 1, StorageKey: "late.png", Data: bluePNG(t, 4, 4)}))
	})
}

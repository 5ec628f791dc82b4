package services

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"imagesearch/internal/blob"
	"imagesearch/internal/logger"
)

const (
	thumbnailSize    = 512
	thumbnailQuality = 80
	thumbnailQueue   = 100
	thumbnailTimeout = 30 * time.Second
)

// ThumbnailJob is one stored upload waiting for its thumbnail.
type ThumbnailJob struct {
	ImageID    int64
	StorageKey string
	Filename   string
	Data       []byte
}

// ThumbnailDone is called after a thumbnail has been stored under thumbKey.
type ThumbnailDone func(job ThumbnailJob, thumbKey string)

// ThumbnailProcessor renders thumbnails on a fixed pool of workers.
type ThumbnailProcessor struct {
	jobs       chan ThumbnailJob
	wg         sync.WaitGroup
	blobs      blob.Store
	log        *zap.Logger
	onComplete ThumbnailDone
	done       chan struct{}
	once       sync.Once
}

// NewThumbnailProcessor starts workers goroutines (at least one).
func NewThumbnailProcessor(blobs blob.Store, workers int, log *zap.Logger, onComplete ThumbnailDone) *ThumbnailProcessor {
	if workers < 1 {
		workers = 1
	}
	p := &ThumbnailProcessor{
		jobs:       make(chan ThumbnailJob, thumbnailQueue),
		blobs:      blobs,
		log:        logger.OrNop(log),
		onComplete: onComplete,
		done:       make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *ThumbnailProcessor) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobs:
			p.handle(id, job)
		case <-p.done:
			// drain what was queued before shutdown
			for {
				select {
				case job := <-p.jobs:
					p.handle(id, job)
				default:
					return
				}
			}
		}
	}
}

func (p *ThumbnailProcessor) handle(worker int, job ThumbnailJob) {
	log := p.log.With(zap.Int("worker", worker), zap.Int64("image_id", job.ImageID))
	key, err := p.process(job)
	if err != nil {
		log.Warn("thumbnail failed", zap.Error(err))
		return
	}
	log.Debug("thumbnail ready", zap.String("key", key))
	if p.onComplete != nil {
		p.onComplete(job, key)
	}
}

func (p *ThumbnailProcessor) process(job ThumbnailJob) (string, error) {
	src, err := imaging.Decode(bytes.NewReader(job.Data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	thumb := imaging.Fill(src, thumbnailSize, thumbnailSize, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), thumbnailTimeout)
	defer cancel()

	key := blob.ThumbnailKey(job.StorageKey)
	if err := p.blobs.Put(ctx, key, "image/jpeg", buf.Bytes()); err != nil {
		return "", fmt.Errorf("save thumbnail: %w", err)
	}
	return key, nil
}

// Queue hands job to the workers. It never blocks; when the queue is full
// or the processor has shut down the job is dropped and false is returned.
func (p *ThumbnailProcessor) Queue(job ThumbnailJob) bool {
	select {
	case <-p.done:
		p.log.Debug("thumbnail processor stopped, skipping image", zap.Int64("image_id", job.ImageID))
		return false
	default:
	}

	select {
	case p.jobs <- job:
		return true
	default:
		p.log.Warn("thumbnail queue full, skipping image", zap.Int64("image_id", job.ImageID))
		return false
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish.
func (p *ThumbnailProcessor) Shutdown() {
	p.once.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

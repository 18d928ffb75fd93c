// Package thumbs generates thumbnails for uploaded images in a background
// worker. The client's thumbnail poll observes its output appearing on the
// media rows.
package thumbs

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"time"

	"github.com/nfnt/resize"

	"github.com/huddlehq/huddle/internal/blob"
	"github.com/huddlehq/huddle/internal/store"
)

const (
	thumbWidth   = 320
	jpegQuality  = 80
	batchLimit   = 20
	sweepDefault = 2 * time.Second
)

// MediaQueue is the slice of the media store the worker needs.
type MediaQueue interface {
	ListMissingThumbs(ctx context.Context, limit int) ([]store.Media, error)
	SetThumbKey(ctx context.Context, id, thumbKey string) error
}

// Worker sweeps for images without thumbnails and fills them in.
type Worker struct {
	media  MediaQueue
	blobs  *blob.Store
	logger *slog.Logger
	every  time.Duration

	// OnGenerated, when set, runs once per thumbnail actually produced
	// (fallbacks to the original object do not count).
	OnGenerated func()
}

func NewWorker(media MediaQueue, blobs *blob.Store, logger *slog.Logger, every time.Duration) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if every <= 0 {
		every = sweepDefault
	}
	return &Worker{media: media, blobs: blobs, logger: logger, every: every}
}

// Run sweeps until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep processes one batch of pending images.
func (w *Worker) Sweep(ctx context.Context) {
	pending, err := w.media.ListMissingThumbs(ctx, batchLimit)
	if err != nil {
		w.logger.Error("listing pending thumbnails", "error", err)
		return
	}
	for _, m := range pending {
		if ctx.Err() != nil {
			return
		}
		key, err := w.generate(m)
		if err != nil {
			// Undecodable formats (heic among them) fall back to the
			// original object so the item leaves the queue.
			w.logger.Warn("thumbnail generation failed, using original",
				"media_id", m.ID, "content_type", m.ContentType, "error", err)
			key = m.ObjectKey
		} else if w.OnGenerated != nil {
			w.OnGenerated()
		}
		if err := w.media.SetThumbKey(ctx, m.ID, key); err != nil {
			w.logger.Error("recording thumbnail", "media_id", m.ID, "error", err)
			continue
		}
		w.logger.Info("thumbnail ready", "media_id", m.ID, "thumb_key", key)
	}
}

func (w *Worker) generate(m store.Media) (string, error) {
	obj, _, err := w.blobs.Open(m.ObjectKey)
	if err != nil {
		return "", fmt.Errorf("opening source object: %w", err)
	}
	defer obj.Close()

	src, _, err := image.Decode(obj)
	if err != nil {
		return "", fmt.Errorf("decoding image: %w", err)
	}

	thumb := resize.Resize(thumbWidth, 0, src, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("encoding thumbnail: %w", err)
	}

	key := fmt.Sprintf("thumbs/%s.jpg", m.ID)
	if _, err := w.blobs.Put(key, &buf); err != nil {
		return "", fmt.Errorf("storing thumbnail: %w", err)
	}
	return key, nil
}

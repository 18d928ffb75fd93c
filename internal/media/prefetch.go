package media

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/huddlehq/huddle/internal/apiclient"
)

// API is the slice of the backend client the media layer consumes.
// *apiclient.Client satisfies it.
type API interface {
	ListMedia(ctx context.Context, cursor string, limit int) (*apiclient.MediaPage, error)
	PresignUpload(ctx context.Context, in apiclient.PresignUploadInput) (*apiclient.PresignedUpload, error)
	CompleteUpload(ctx context.Context, in apiclient.CompleteUploadInput) error
	PresignDownload(ctx context.Context, mediaID string) (*apiclient.PresignedDownload, error)
	DeleteMedia(ctx context.Context, mediaID string) error
}

// Prefetcher resolves presigned download URLs through the cache and collapses
// concurrent requests for the same item into one backend call.
type Prefetcher struct {
	api   API
	cache *URLCache
	group singleflight.Group
}

func NewPrefetcher(api API, cache *URLCache) *Prefetcher {
	return &Prefetcher{api: api, cache: cache}
}

// URL returns a usable download URL for mediaID, from cache when fresh.
// A viewer on item i and the warmer for i+1 asking at the same time share
// one presign request.
func (p *Prefetcher) URL(ctx context.Context, mediaID string) (string, error) {
	if u, ok := p.cache.Get(mediaID); ok {
		return u, nil
	}
	v, err, _ := p.group.Do(mediaID, func() (any, error) {
		if u, ok := p.cache.Get(mediaID); ok {
			return u, nil
		}
		d, err := p.api.PresignDownload(ctx, mediaID)
		if err != nil {
			return "", err
		}
		p.cache.Put(mediaID, d.DownloadURL)
		return d.DownloadURL, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Warm resolves neighbours of index i within radius in the background.
// Failures are swallowed; a miss just means the viewer waits on swipe.
func (p *Prefetcher) Warm(ctx context.Context, items []apiclient.MediaAsset, i, radius int) {
	for d := 1; d <= radius; d++ {
		for _, j := range []int{i - d, i + d} {
			if j < 0 || j >= len(items) {
				continue
			}
			id := items[j].MediaID
			if _, ok := p.cache.Get(id); ok {
				continue
			}
			go func() {
				p.URL(ctx, id)
			}()
		}
	}
}

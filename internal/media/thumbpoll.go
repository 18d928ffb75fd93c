package media

import (
	"context"
	"errors"
	"time"
)

// ErrThumbNotReady is returned when polling exhausts its attempts without
// the thumbnail appearing. The item is fine; the thumbnailer is just slow.
var ErrThumbNotReady = errors.New("thumbnail not ready")

// ThumbPoller waits for the background thumbnailer to fill in thumb_key on
// a freshly uploaded item. Attempts are bounded and each failed fetch is
// non-fatal; only context cancellation stops the poll early.
type ThumbPoller struct {
	fetch    func(ctx context.Context, mediaID string) (thumbKey string, err error)
	attempts int
	interval time.Duration
	after    func(d time.Duration) <-chan time.Time
}

// NewThumbPoller builds a poller. A nil after uses time.After.
func NewThumbPoller(fetch func(ctx context.Context, mediaID string) (string, error), attempts int, interval time.Duration, after func(time.Duration) <-chan time.Time) *ThumbPoller {
	if attempts <= 0 {
		attempts = 10
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if after == nil {
		after = time.After
	}
	return &ThumbPoller{fetch: fetch, attempts: attempts, interval: interval, after: after}
}

// Wait polls until the item reports a thumbnail, attempts run out, or ctx
// is cancelled.
func (p *ThumbPoller) Wait(ctx context.Context, mediaID string) (string, error) {
	for attempt := 0; attempt < p.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-p.after(p.interval):
			}
		}
		key, err := p.fetch(ctx, mediaID)
		if err != nil {
			continue
		}
		if key != "" {
			return key, nil
		}
	}
	return "", ErrThumbNotReady
}

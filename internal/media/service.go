package media

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/huddlehq/huddle/internal/apiclient"
	"github.com/huddlehq/huddle/internal/authz"
)

// ErrNotPermitted is returned when the local permission gate rejects an
// action. No network call is made.
var ErrNotPermitted = errors.New("not permitted")

// DeleteGate decides whether the current identity may delete an item. The
// app wires this to authz.CanDelete with the live session.
type DeleteGate func(item authz.Item) bool

// Options tune the media service. Zero values take the documented defaults.
type Options struct {
	URLCacheTTL       time.Duration // default 2m, must stay below backend expiry
	PrefetchRadius    int           // default 1
	MaxUploadBytes    int64         // default 300 MiB
	ThumbPollAttempts int           // default 10
	ThumbPollInterval time.Duration // default 3s
	PageSize          int           // default 100

	Now   func() time.Time
	After func(time.Duration) <-chan time.Time

	CanDelete DeleteGate
	// OnAuthError fires when the backend rejects a credential, so the app
	// can clear the owning credential group and re-resolve the session.
	OnAuthError func(error)
}

// Service is the media access layer for the currently open team.
type Service struct {
	api      API
	cache    *URLCache
	prefetch *Prefetcher
	uploader *Uploader
	sel      *SelectionSet

	radius      int
	pageSize    int
	pollTries   int
	pollEvery   time.Duration
	after       func(time.Duration) <-chan time.Time
	canDelete   DeleteGate
	onAuthError func(error)

	mu         sync.Mutex
	listing    []apiclient.MediaAsset
	nextCursor string
	album      string
	gen        uint64
}

func NewService(api API, objects ObjectPutter, opts Options) *Service {
	if opts.URLCacheTTL <= 0 {
		opts.URLCacheTTL = 2 * time.Minute
	}
	if opts.PrefetchRadius <= 0 {
		opts.PrefetchRadius = 1
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	cache := NewURLCache(opts.URLCacheTTL, opts.Now)
	return &Service{
		api:         api,
		cache:       cache,
		prefetch:    NewPrefetcher(api, cache),
		uploader:    NewUploader(api, objects, opts.MaxUploadBytes),
		sel:         NewSelectionSet(),
		radius:      opts.PrefetchRadius,
		pageSize:    opts.PageSize,
		pollTries:   opts.ThumbPollAttempts,
		pollEvery:   opts.ThumbPollInterval,
		after:       opts.After,
		canDelete:   opts.CanDelete,
		onAuthError: opts.OnAuthError,
	}
}

// Refresh replaces the listing with the first page from the backend. When
// refreshes race, the last one issued wins; a slow earlier response never
// overwrites a newer listing.
func (s *Service) Refresh(ctx context.Context) ([]apiclient.MediaAsset, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	page, err := s.api.ListMedia(ctx, "", s.pageSize)
	if err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return s.visibleLocked(), nil
	}
	s.listing = page.Items
	s.nextCursor = page.NextCursor
	s.pruneSelectionLocked()
	return s.visibleLocked(), nil
}

// LoadMore appends the next page, if any.
func (s *Service) LoadMore(ctx context.Context) ([]apiclient.MediaAsset, error) {
	s.mu.Lock()
	cursor := s.nextCursor
	gen := s.gen
	s.mu.Unlock()
	if cursor == "" {
		return s.Items(), nil
	}

	page, err := s.api.ListMedia(ctx, cursor, s.pageSize)
	if err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return s.visibleLocked(), nil
	}
	s.listing = append(s.listing, page.Items...)
	s.nextCursor = page.NextCursor
	return s.visibleLocked(), nil
}

// Items returns the listing filtered by the active album.
func (s *Service) Items() []apiclient.MediaAsset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visibleLocked()
}

// SetAlbum switches the album filter ("" shows everything) and prunes the
// selection down to items still visible.
func (s *Service) SetAlbum(album string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.album == album {
		return
	}
	s.album = album
	s.pruneSelectionLocked()
}

// Album reports the active album filter.
func (s *Service) Album() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.album
}

// Albums lists the distinct album names present in the loaded listing.
func (s *Service) Albums() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for _, item := range s.listing {
		if item.AlbumName == "" {
			continue
		}
		if _, ok := seen[item.AlbumName]; ok {
			continue
		}
		seen[item.AlbumName] = struct{}{}
		out = append(out, item.AlbumName)
	}
	return out
}

// Selection exposes the live selection set.
func (s *Service) Selection() *SelectionSet { return s.sel }

// URLAt resolves the download URL for the visible item at index i and warms
// its neighbours for the carousel.
func (s *Service) URLAt(ctx context.Context, i int) (string, error) {
	items := s.Items()
	if i < 0 || i >= len(items) {
		return "", fmt.Errorf("index %d out of range", i)
	}
	u, err := s.prefetch.URL(ctx, items[i].MediaID)
	if err != nil {
		return "", s.fail(err)
	}
	s.prefetch.Warm(ctx, items, i, s.radius)
	return u, nil
}

// URLFor resolves the download URL for one media id, from cache when fresh.
func (s *Service) URLFor(ctx context.Context, mediaID string) (string, error) {
	u, err := s.prefetch.URL(ctx, mediaID)
	if err != nil {
		return "", s.fail(err)
	}
	return u, nil
}

// Upload runs the two-phase upload and prepends the completed item to the
// listing once the backend lists it.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (string, error) {
	id, err := s.uploader.Upload(ctx, req)
	if err != nil {
		return "", s.fail(err)
	}
	return id, nil
}

// Delete removes an item after the local permission gate allows it, then
// prunes every local structure that referenced it.
func (s *Service) Delete(ctx context.Context, mediaID string) error {
	s.mu.Lock()
	var item *apiclient.MediaAsset
	for idx := range s.listing {
		if s.listing[idx].MediaID == mediaID {
			item = &s.listing[idx]
			break
		}
	}
	s.mu.Unlock()

	if item != nil && s.canDelete != nil {
		if !s.canDelete(authz.Item{MediaID: item.MediaID, OwnerUserID: item.OwnerUserID}) {
			return ErrNotPermitted
		}
	}

	if err := s.api.DeleteMedia(ctx, mediaID); err != nil {
		return s.fail(err)
	}

	s.cache.Evict(mediaID)
	s.sel.Remove(mediaID)

	s.mu.Lock()
	defer s.mu.Unlock()
	for idx := range s.listing {
		if s.listing[idx].MediaID == mediaID {
			s.listing = append(s.listing[:idx], s.listing[idx+1:]...)
			break
		}
	}
	return nil
}

// WaitForThumb polls the listing until the uploaded item reports a
// thumbnail, with bounded attempts. ErrThumbNotReady is informational, not
// a failure of the upload.
func (s *Service) WaitForThumb(ctx context.Context, mediaID string) (string, error) {
	poller := NewThumbPoller(s.fetchThumbKey, s.pollTries, s.pollEvery, s.after)
	return poller.Wait(ctx, mediaID)
}

func (s *Service) fetchThumbKey(ctx context.Context, mediaID string) (string, error) {
	// New uploads sort first, so the first page is almost always enough.
	page, err := s.api.ListMedia(ctx, "", s.pageSize)
	if err != nil {
		return "", err
	}
	for _, item := range page.Items {
		if item.MediaID == mediaID {
			return item.ThumbKey, nil
		}
	}
	return "", nil
}

func (s *Service) visibleLocked() []apiclient.MediaAsset {
	if s.album == "" {
		out := make([]apiclient.MediaAsset, len(s.listing))
		copy(out, s.listing)
		return out
	}
	var out []apiclient.MediaAsset
	for _, item := range s.listing {
		if item.AlbumName == s.album {
			out = append(out, item)
		}
	}
	return out
}

func (s *Service) pruneSelectionLocked() {
	visible := s.visibleLocked()
	ids := make([]string, len(visible))
	for i, item := range visible {
		ids[i] = item.MediaID
	}
	s.sel.PruneTo(ids)
}

// fail routes credential rejections to the invalidation hook and passes the
// error through unchanged.
func (s *Service) fail(err error) error {
	if apiclient.IsAuth(err) && s.onAuthError != nil {
		s.onAuthError(err)
	}
	return err
}

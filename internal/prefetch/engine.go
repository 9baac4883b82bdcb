package prefetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/reelay/reelay/internal/domain"
	"github.com/reelay/reelay/internal/store"
)

const (
	defaultTimeout = 30 * time.Second

	// DefaultChunkBytes bounds a media prefetch to roughly 1.5 MB: enough
	// to cover player startup without committing real bandwidth.
	DefaultChunkBytes = 1536 * 1024
)

// Engine opportunistically warms playback by fetching bounded byte ranges of
// media and whole poster images into the blob store. Every operation is
// best-effort: failures are logged and swallowed, never surfaced, so a cache
// problem can never block playback.
type Engine struct {
	blobs       domain.BlobStore
	client      *http.Client
	mediaBucket string
	imageBucket string
	chunkBytes  int64
	logger      *slog.Logger

	wg sync.WaitGroup
}

// NewEngine creates an Engine writing into the versioned buckets for
// version. A zero chunkBytes selects DefaultChunkBytes.
func NewEngine(blobs domain.BlobStore, version int, chunkBytes int64, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if chunkBytes <= 0 {
		chunkBytes = DefaultChunkBytes
	}
	return &Engine{
		blobs:       blobs,
		client:      &http.Client{Timeout: defaultTimeout},
		mediaBucket: store.MediaBucketName(version),
		imageBucket: store.ImageBucketName(version),
		chunkBytes:  chunkBytes,
		logger:      logger,
	}
}

// HasMediaChunk reports whether a media chunk is cached for url.
func (e *Engine) HasMediaChunk(rawURL string) bool {
	return isHTTPURL(rawURL) && e.blobs.Has(e.mediaBucket, rawURL)
}

// HasImage reports whether a poster image is cached for url.
func (e *Engine) HasImage(rawURL string) bool {
	return isHTTPURL(rawURL) && e.blobs.Has(e.imageBucket, rawURL)
}

// BufferMediaChunk fetches the first chunk of the media at url into the
// cache. No-op for non-http URLs and for urls already cached; at most one
// entry and one underlying fetch per url.
func (e *Engine) BufferMediaChunk(ctx context.Context, rawURL string) {
	if !isHTTPURL(rawURL) || e.blobs.Has(e.mediaBucket, rawURL) {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", e.chunkBytes-1))
	// Bypass intermediate caches so the stored chunk reflects the origin.
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Debug("media prefetch failed", "url", rawURL, "error", err)
		return
	}
	defer resp.Body.Close()

	// 200 means the origin ignored the Range header and is sending the whole
	// object; accept it and bound the read ourselves.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		e.logger.Debug("media prefetch rejected", "url", rawURL, "status", resp.StatusCode)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, e.chunkBytes))
	if err != nil {
		e.logger.Debug("media prefetch read failed", "url", rawURL, "error", err)
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if err := e.blobs.Put(e.mediaBucket, rawURL, payload, contentType); err != nil {
		e.logger.Debug("media prefetch store failed", "url", rawURL, "error", err)
		return
	}

	e.logger.Debug("buffered media chunk", "url", rawURL, "bytes", len(payload))
}

// BufferImage fetches the whole image at url into the cache. Best-effort,
// same degradation as BufferMediaChunk.
func (e *Engine) BufferImage(ctx context.Context, rawURL string) {
	if !isHTTPURL(rawURL) || e.blobs.Has(e.imageBucket, rawURL) {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Debug("image prefetch failed", "url", rawURL, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.logger.Debug("image prefetch rejected", "url", rawURL, "status", resp.StatusCode)
		return
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return
	}

	if err := e.blobs.Put(e.imageBucket, rawURL, payload, resp.Header.Get("Content-Type")); err != nil {
		e.logger.Debug("image prefetch store failed", "url", rawURL, "error", err)
		return
	}

	e.logger.Debug("buffered image", "url", rawURL, "bytes", len(payload))
}

// ResolveCachedMediaSrc returns a local handle to the cached media bytes for
// url, or nil when absent. Callers fall back to the network URL on nil.
func (e *Engine) ResolveCachedMediaSrc(rawURL string) *domain.BlobRef {
	ref, ok := e.blobs.Get(e.mediaBucket, rawURL)
	if !ok {
		return nil
	}
	return ref
}

// SeedInitialBuffer warms the cache for a bounded seed set: the first three
// trending items plus the first five items in corpus order, deduplicated.
// Fetches run concurrently and are not awaited.
func (e *Engine) SeedInitialBuffer(ctx context.Context, corpus []domain.VideoItem) {
	const (
		maxTrending = 3
		maxLeading  = 5
	)

	seen := make(map[string]bool)
	var seeds []domain.VideoItem

	trending := 0
	for _, item := range corpus {
		if trending >= maxTrending {
			break
		}
		if item.Trending && !seen[item.ID] {
			seen[item.ID] = true
			seeds = append(seeds, item)
			trending++
		}
	}
	for i, item := range corpus {
		if i >= maxLeading {
			break
		}
		if !seen[item.ID] {
			seen[item.ID] = true
			seeds = append(seeds, item)
		}
	}

	e.logger.Debug("seeding prefetch buffer", "items", len(seeds))

	for _, item := range seeds {
		item := item
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.BufferMediaChunk(ctx, item.SourceURL)
		}()
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.BufferImage(ctx, item.PosterURL)
		}()
	}
}

// Flush blocks until all in-flight seed fetches have finished. Hosts call it
// before shutdown; nothing else waits on prefetching.
func (e *Engine) Flush() {
	e.wg.Wait()
}

// isHTTPURL reports whether raw is an absolute http(s) URL.
func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

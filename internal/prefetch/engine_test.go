package prefetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/reelay/reelay/internal/domain"
	"github.com/reelay/reelay/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBlobStore is an in-memory domain.BlobStore for engine tests
type memBlobStore struct {
	mu      sync.Mutex
	entries map[string]*domain.BlobRef
	putErr  error
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{entries: make(map[string]*domain.BlobRef)}
}

func (m *memBlobStore) Has(bucket, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[bucket+":"+key]
	return ok
}

func (m *memBlobStore) Get(bucket, key string) (*domain.BlobRef, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.entries[bucket+":"+key]
	return ref, ok
}

func (m *memBlobStore) Put(bucket, key string, payload []byte, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[bucket+":"+key]; ok {
		return nil
	}
	m.entries[bucket+":"+key] = &domain.BlobRef{
		Payload:     payload,
		ContentType: contentType,
		Size:        int64(len(payload)),
	}
	return nil
}

func TestBufferMediaChunkStoresRange(t *testing.T) {
	var fetches atomic.Int32
	var gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		gotRange = r.Header.Get("Range")
		w.Header().Set("Content-Type", "video/mp4")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("partial-bytes"))
	}))
	defer srv.Close()

	blobs := newMemBlobStore()
	e := NewEngine(blobs, 1, 0, nil)

	url := srv.URL + "/video.mp4"
	assert.Nil(t, e.ResolveCachedMediaSrc(url))

	e.BufferMediaChunk(context.Background(), url)

	assert.Equal(t, fmt.Sprintf("bytes=0-%d", int64(DefaultChunkBytes)-1), gotRange)
	require.True(t, e.HasMediaChunk(url))

	ref := e.ResolveCachedMediaSrc(url)
	require.NotNil(t, ref)
	assert.Equal(t, []byte("partial-bytes"), ref.Payload)
	assert.Equal(t, "video/mp4", ref.ContentType)

	// Second call is a no-op: one entry, one fetch
	e.BufferMediaChunk(context.Background(), url)
	assert.Equal(t, int32(1), fetches.Load())
}

func TestBufferMediaChunkFullContentFallback(t *testing.T) {
	// Origin ignores the Range header and replies 200 with the whole
	// object; the engine bounds the read itself.
	body := strings.Repeat("x", 2048)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	blobs := newMemBlobStore()
	e := NewEngine(blobs, 1, 1024, nil)

	url := srv.URL + "/video.mp4"
	e.BufferMediaChunk(context.Background(), url)

	ref := e.ResolveCachedMediaSrc(url)
	require.NotNil(t, ref)
	assert.Len(t, ref.Payload, 1024)
	assert.Equal(t, int64(1024), ref.Size)
}

func TestBufferMediaChunkSwallowsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	blobs := newMemBlobStore()
	e := NewEngine(blobs, 1, 0, nil)

	url := srv.URL + "/video.mp4"
	e.BufferMediaChunk(context.Background(), url) // must not panic or store
	assert.False(t, e.HasMediaChunk(url))

	// Store write failures are swallowed too
	blobs.putErr = fmt.Errorf("disk full")
	e.BufferMediaChunk(context.Background(), url)
	assert.False(t, e.HasMediaChunk(url))
}

func TestBufferIgnoresNonHTTPURLs(t *testing.T) {
	blobs := newMemBlobStore()
	e := NewEngine(blobs, 1, 0, nil)

	for _, raw := range []string{"", "not a url", "file:///etc/passwd", "ftp://host/x", "/relative/path"} {
		e.BufferMediaChunk(context.Background(), raw)
		e.BufferImage(context.Background(), raw)
		assert.False(t, e.HasMediaChunk(raw), "url %q", raw)
		assert.False(t, e.HasImage(raw), "url %q", raw)
	}
}

func TestBufferImage(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		assert.Empty(t, r.Header.Get("Range"))
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	blobs := newMemBlobStore()
	e := NewEngine(blobs, 1, 0, nil)

	url := srv.URL + "/poster.jpg"
	e.BufferImage(context.Background(), url)

	require.True(t, e.HasImage(url))
	ref, ok := blobs.Get(store.ImageBucketName(1), url)
	require.True(t, ok)
	assert.Equal(t, []byte("jpeg-bytes"), ref.Payload)
	assert.Equal(t, "image/jpeg", ref.ContentType)

	e.BufferImage(context.Background(), url)
	assert.Equal(t, int32(1), fetches.Load())
}

func TestSeedInitialBuffer(t *testing.T) {
	var mu sync.Mutex
	fetched := make(map[string]bool)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		fetched[r.URL.Path] = true
		mu.Unlock()
		w.Write([]byte("bytes"))
	}))
	defer srv.Close()

	item := func(i int, trending bool) domain.VideoItem {
		return domain.VideoItem{
			ID:        fmt.Sprintf("v%d", i),
			Trending:  trending,
			SourceURL: fmt.Sprintf("%s/media/%d", srv.URL, i),
			PosterURL: fmt.Sprintf("%s/poster/%d", srv.URL, i),
		}
	}

	// Trending items beyond the first three are not seeded; leading items
	// overlap with trending picks and are deduplicated.
	corpus := []domain.VideoItem{
		item(0, true),
		item(1, false),
		item(2, true),
		item(3, true),
		item(4, false),
		item(5, false),
		item(6, true), // 4th trending: skipped
		item(7, false),
	}

	blobs := newMemBlobStore()
	e := NewEngine(blobs, 1, 0, nil)

	e.SeedInitialBuffer(context.Background(), corpus)
	e.Flush()

	// Seed set: trending 0,2,3 plus leading 0..4 => ids 0,1,2,3,4
	for _, i := range []int{0, 1, 2, 3, 4} {
		assert.True(t, e.HasMediaChunk(corpus[i].SourceURL), "media %d", i)
		assert.True(t, e.HasImage(corpus[i].PosterURL), "image %d", i)
	}
	for _, i := range []int{5, 6, 7} {
		assert.False(t, e.HasMediaChunk(corpus[i].SourceURL), "media %d", i)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, fetched, 10) // 5 items x (media + poster), no duplicates
}

func TestEngineWithBoltStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("chunk"))
	}))
	defer srv.Close()

	st, err := store.NewStore(t.TempDir(), 3)
	require.NoError(t, err)
	defer st.Close()

	e := NewEngine(st, 3, 0, nil)
	url := srv.URL + "/v.mp4"

	e.BufferMediaChunk(context.Background(), url)
	ref := e.ResolveCachedMediaSrc(url)
	require.NotNil(t, ref)
	assert.Equal(t, []byte("chunk"), ref.Payload)
}

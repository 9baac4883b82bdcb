package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/reelay/reelay/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Fixed bucket names. Blob buckets are versioned and derived via
// MediaBucketName/ImageBucketName; bumping the version abandons all prior
// entries without explicit eviction.
var (
	bucketNarration = []byte("narration")
	bucketProfile   = []byte("profile")
)

const (
	keyPool    = "keypool"
	keyProfile = "categories"
)

// MediaBucketName returns the versioned bucket holding media chunk prefetches.
func MediaBucketName(version int) string {
	return fmt.Sprintf("media-buffer-v%d", version)
}

// ImageBucketName returns the versioned bucket holding poster images.
func ImageBucketName(version int) string {
	return fmt.Sprintf("image-cache-v%d", version)
}

// blobEntry wraps cached bytes for JSON serialization
type blobEntry struct {
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Payload     []byte `json:"payload"`
}

// Store implements domain.BlobStore, domain.PoolStore and
// domain.ProfileStore using BoltDB.
type Store struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path blob reads (promoted on access)
	cache map[string][]byte
}

// NewStore opens (or creates) the store under dir and ensures the versioned
// blob buckets for version exist. An empty dir yields a memory-only store.
func NewStore(dir string, version int) (*Store, error) {
	if dir == "" {
		return &Store{cache: make(map[string][]byte)}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "reelay.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	buckets := [][]byte{
		[]byte(MediaBucketName(version)),
		[]byte(ImageBucketName(version)),
		bucketNarration,
		bucketProfile,
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, cache: make(map[string][]byte)}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Blob cache (domain.BlobStore) ===

// Has reports whether bucket holds an entry for key.
func (s *Store) Has(bucket, key string) bool {
	cacheKey := bucket + ":" + key

	s.mu.RLock()
	_, ok := s.cache[cacheKey]
	s.mu.RUnlock()
	if ok {
		return true
	}

	if s.db == nil {
		return false
	}

	found := false
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b != nil && b.Get([]byte(key)) != nil {
			found = true
		}
		return nil
	})
	return found
}

// Get returns the cached bytes for key, promoting them to the memory cache.
func (s *Store) Get(bucket, key string) (*domain.BlobRef, bool) {
	cacheKey := bucket + ":" + key

	s.mu.RLock()
	data, ok := s.cache[cacheKey]
	s.mu.RUnlock()

	if !ok {
		if s.db == nil {
			return nil, false
		}
		s.db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket([]byte(bucket))
			if b == nil {
				return nil
			}
			if v := b.Get([]byte(key)); v != nil {
				data = make([]byte, len(v))
				copy(data, v)
			}
			return nil
		})
		if data == nil {
			return nil, false
		}

		// Promote to memory cache
		s.mu.Lock()
		s.cache[cacheKey] = data
		s.mu.Unlock()
	}

	var entry blobEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	return &domain.BlobRef{
		Payload:     entry.Payload,
		ContentType: entry.ContentType,
		Size:        entry.Size,
	}, true
}

// Put stores payload under key. A key already present is left untouched so a
// later, smaller write can never clobber a full entry.
func (s *Store) Put(bucket, key string, payload []byte, contentType string) error {
	if s.Has(bucket, key) {
		return nil
	}

	data, err := json.Marshal(blobEntry{
		ContentType: contentType,
		Size:        int64(len(payload)),
		Payload:     payload,
	})
	if err != nil {
		return err
	}

	cacheKey := bucket + ":" + key
	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil // Memory-only mode
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// === Key pool (domain.PoolStore) ===

// LoadPool reads the persisted key pool. A missing record yields an empty pool.
func (s *Store) LoadPool() (domain.KeyPoolConfig, error) {
	var cfg domain.KeyPoolConfig
	if s.db == nil {
		s.mu.RLock()
		data, ok := s.cache["pool:"+keyPool]
		s.mu.RUnlock()
		if !ok {
			return cfg, nil
		}
		return cfg, json.Unmarshal(data, &cfg)
	}

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNarration)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(keyPool)); v != nil {
			return json.Unmarshal(v, &cfg)
		}
		return nil
	})
	return cfg, err
}

// SavePool replaces the persisted key pool.
func (s *Store) SavePool(cfg domain.KeyPoolConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}

	if s.db == nil {
		s.mu.Lock()
		s.cache["pool:"+keyPool] = data
		s.mu.Unlock()
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketNarration)
		if err != nil {
			return err
		}
		return b.Put([]byte(keyPool), data)
	})
}

// AdvanceIndex advances the rotation index by one, wrapping modulo pool
// length, but only if the stored index still resolves to from inside the
// write transaction. The stored index may be out of range (the pool can
// shrink after keys are removed), so it is compared through the same
// modulo resolution callers use to pick a key. A stale from means another
// speaker already rotated; the stored pool is returned unchanged then.
func (s *Store) AdvanceIndex(from int) (domain.KeyPoolConfig, error) {
	if s.db == nil {
		cfg, err := s.LoadPool()
		if err != nil {
			return cfg, err
		}
		if _, idx, ok := cfg.Current(); ok && idx == from {
			cfg.CurrentIndex = (from + 1) % len(cfg.Keys)
			if err := s.SavePool(cfg); err != nil {
				return cfg, err
			}
		}
		return cfg, nil
	}

	var cfg domain.KeyPoolConfig
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketNarration)
		if err != nil {
			return err
		}
		if v := b.Get([]byte(keyPool)); v != nil {
			if err := json.Unmarshal(v, &cfg); err != nil {
				return err
			}
		}
		_, idx, ok := cfg.Current()
		if !ok || idx != from {
			return nil
		}
		cfg.CurrentIndex = (from + 1) % len(cfg.Keys)
		data, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		return b.Put([]byte(keyPool), data)
	})
	return cfg, err
}

// === Interest profile (domain.ProfileStore) ===

// LoadProfile reads the persisted interest categories.
func (s *Store) LoadProfile() ([]string, error) {
	var cats []string
	if s.db == nil {
		s.mu.RLock()
		data, ok := s.cache["profile:"+keyProfile]
		s.mu.RUnlock()
		if !ok {
			return nil, nil
		}
		return cats, json.Unmarshal(data, &cats)
	}

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProfile)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(keyProfile)); v != nil {
			return json.Unmarshal(v, &cats)
		}
		return nil
	})
	return cats, err
}

// SaveProfile persists the interest categories in sorted order.
func (s *Store) SaveProfile(categories []string) error {
	sorted := make([]string, len(categories))
	copy(sorted, categories)
	sort.Strings(sorted)

	data, err := json.Marshal(sorted)
	if err != nil {
		return err
	}

	if s.db == nil {
		s.mu.Lock()
		s.cache["profile:"+keyProfile] = data
		s.mu.Unlock()
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketProfile)
		if err != nil {
			return err
		}
		return b.Put([]byte(keyProfile), data)
	})
}

// InvalidateBlobs drops every entry in the named blob bucket. Normal
// invalidation is a version bump; this exists for explicit cache clearing
// from the host's settings surface.
func (s *Store) InvalidateBlobs(bucket string) {
	s.mu.Lock()
	prefix := bucket + ":"
	for k := range s.cache {
		if strings.HasPrefix(k, prefix) {
			delete(s.cache, k)
		}
	}
	s.mu.Unlock()

	if s.db == nil {
		return
	}

	s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(bucket)) == nil {
			return nil
		}
		if err := tx.DeleteBucket([]byte(bucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucket))
		return err
	})
}

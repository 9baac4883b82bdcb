package domain

// BlobStore is the byte-store capability the prefetch engine writes into.
// Entries are keyed by source URL within a named bucket; writes to the same
// key are idempotent.
type BlobStore interface {
	Has(bucket, key string) bool
	Get(bucket, key string) (*BlobRef, bool)
	Put(bucket, key string, payload []byte, contentType string) error
}

// PoolStore persists the narration key pool shared across clients.
type PoolStore interface {
	LoadPool() (KeyPoolConfig, error)
	SavePool(cfg KeyPoolConfig) error

	// AdvanceIndex advances the rotation index by one, but only if it still
	// equals from when the write lands. Concurrent speakers therefore rotate
	// at most once per failing key. Returns the pool after the attempt.
	AdvanceIndex(from int) (KeyPoolConfig, error)
}

// ProfileStore persists the local interest profile.
type ProfileStore interface {
	LoadProfile() ([]string, error)
	SaveProfile(categories []string) error
}

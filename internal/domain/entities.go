package domain

// watchedThreshold is the watch progress above which an item counts as seen.
const watchedThreshold = 0.8

// VideoItem represents a single playable video in the corpus.
// The corpus is owned by the host application; this module only reads it.
type VideoItem struct {
	ID        string // Unique identifier within the corpus
	Title     string // Display title
	Category  string // Content category, matched against interest profiles
	Trending  bool   // Whether the item is currently trending
	SourceURL string // Playable media URL
	PosterURL string // Poster/thumbnail image URL
}

// InteractionState is a snapshot of a user's interaction history.
// The zero value is usable; nil maps are treated as empty.
type InteractionState struct {
	Liked        map[string]bool    // Item IDs the user liked
	Disliked     map[string]bool    // Item IDs the user disliked
	Saved        map[string]bool    // Item IDs the user saved
	WatchHistory map[string]float64 // Item ID -> watch progress in [0,1]
}

// Like records a like, removing any dislike for the same item.
// Liked and disliked are mutually exclusive.
func (s *InteractionState) Like(id string) {
	if s.Liked == nil {
		s.Liked = make(map[string]bool)
	}
	s.Liked[id] = true
	delete(s.Disliked, id)
}

// Dislike records a dislike, removing any like for the same item.
func (s *InteractionState) Dislike(id string) {
	if s.Disliked == nil {
		s.Disliked = make(map[string]bool)
	}
	s.Disliked[id] = true
	delete(s.Liked, id)
}

// Save marks an item as saved.
func (s *InteractionState) Save(id string) {
	if s.Saved == nil {
		s.Saved = make(map[string]bool)
	}
	s.Saved[id] = true
}

// RecordProgress stores watch progress for an item, clamped to [0,1].
func (s *InteractionState) RecordProgress(id string, progress float64) {
	if s.WatchHistory == nil {
		s.WatchHistory = make(map[string]float64)
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	s.WatchHistory[id] = progress
}

// Watched reports whether the item's progress has crossed the watched threshold.
func (s InteractionState) Watched(id string) bool {
	return s.WatchHistory[id] > watchedThreshold
}

// IsDisliked reports whether the item has been disliked.
func (s InteractionState) IsDisliked(id string) bool {
	return s.Disliked[id]
}

// BlobRef is a locally addressable handle to cached bytes.
type BlobRef struct {
	Payload     []byte
	ContentType string
	Size        int64
}

// KeyStatus classifies a narration key after a quota probe.
type KeyStatus string

const (
	KeyStatusActive KeyStatus = "active" // Usable quota remains
	KeyStatusEmpty  KeyStatus = "empty"  // Quota effectively exhausted
	KeyStatusError  KeyStatus = "error"  // Probe failed; quota unknown
)

// KeyRecord is the result of probing one narration key.
// Records are derived on demand and never persisted.
type KeyRecord struct {
	Key       string
	Used      int
	Limit     int
	Remaining int // -1 when the probe failed
	Status    KeyStatus
}

// KeyPoolConfig is the persisted narration key pool shared across clients.
// The index advances only when a key fails with an auth or quota error.
type KeyPoolConfig struct {
	Keys         []string `json:"keys"`
	CurrentIndex int      `json:"currentIndex"`
}

// Current resolves the current key, wrapping the index modulo pool length.
func (c KeyPoolConfig) Current() (key string, index int, ok bool) {
	if len(c.Keys) == 0 {
		return "", 0, false
	}
	index = c.CurrentIndex % len(c.Keys)
	if index < 0 {
		index += len(c.Keys)
	}
	return c.Keys[index], index, true
}

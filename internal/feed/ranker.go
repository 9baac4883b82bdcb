package feed

import (
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/reelay/reelay/internal/domain"
)

// Scoring weights. A uniform draw in [0,10) keeps ordering fresh between
// refreshes; interest and trending boosts dominate it so preferred content
// still floats to the top.
const (
	baseScoreSpan = 10.0
	interestBoost = 50.0
	trendingBoost = 20.0
)

// Ranker computes a prioritized viewing order from a corpus and a user's
// interaction snapshot. It performs no I/O and is safe for concurrent use.
type Ranker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRanker creates a Ranker. A nil rng selects a real entropy source;
// tests pass a seeded generator for reproducible orderings.
func NewRanker(rng *rand.Rand) *Ranker {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Ranker{rng: rng}
}

// Rank returns a deduplicated ordering of corpus:
//
//  1. Unwatched, non-disliked items come scored and sorted when any exist.
//  2. Otherwise previously watched items are recycled in shuffled order.
//  3. If filtering left nothing but the corpus is non-empty, the whole
//     corpus is shuffled ignoring filters, so a non-empty corpus never
//     yields an empty feed.
//
// An empty corpus yields an empty result. A zero-value interaction state is
// treated as no history.
func (r *Ranker) Rank(corpus []domain.VideoItem, interactions domain.InteractionState, interests []string) []domain.VideoItem {
	if len(corpus) == 0 {
		return nil
	}

	interested := make(map[string]bool, len(interests))
	for _, c := range interests {
		interested[c] = true
	}

	var unwatched, watched []domain.VideoItem
	for _, item := range corpus {
		if interactions.IsDisliked(item.ID) {
			continue
		}
		if interactions.Watched(item.ID) {
			watched = append(watched, item)
		} else {
			unwatched = append(unwatched, item)
		}
	}

	r.mu.Lock()
	var result []domain.VideoItem
	switch {
	case len(unwatched) > 0:
		result = r.scoreAndSort(unwatched, interested)
	case len(watched) > 0:
		result = r.shuffled(watched)
	default:
		// Safety net: everything filtered out (e.g. all disliked).
		result = r.shuffled(corpus)
	}
	r.mu.Unlock()

	return dedupeByID(result)
}

// scoreAndSort assigns each item a randomized score plus interest and
// trending boosts, then orders descending. Caller holds r.mu.
func (r *Ranker) scoreAndSort(items []domain.VideoItem, interested map[string]bool) []domain.VideoItem {
	type scored struct {
		item  domain.VideoItem
		score float64
	}

	ranked := make([]scored, len(items))
	for i, item := range items {
		score := r.rng.Float64() * baseScoreSpan
		if interested[item.Category] {
			score += interestBoost
		}
		if item.Trending {
			score += trendingBoost
		}
		ranked[i] = scored{item: item, score: score}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	result := make([]domain.VideoItem, len(ranked))
	for i, s := range ranked {
		result[i] = s.item
	}
	return result
}

// shuffled returns a uniformly shuffled copy. Caller holds r.mu.
func (r *Ranker) shuffled(items []domain.VideoItem) []domain.VideoItem {
	out := make([]domain.VideoItem, len(items))
	copy(out, items)
	r.rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// dedupeByID drops repeated ids, keeping the first occurrence in order.
// The corpus is expected to be unique already; input is not trusted.
func dedupeByID(items []domain.VideoItem) []domain.VideoItem {
	seen := make(map[string]bool, len(items))
	out := items[:0:0]
	for _, item := range items {
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		out = append(out, item)
	}
	return out
}

package feed

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/reelay/reelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededRanker(seed uint64) *Ranker {
	return NewRanker(rand.New(rand.NewPCG(seed, seed)))
}

func makeCorpus(n int) []domain.VideoItem {
	corpus := make([]domain.VideoItem, n)
	for i := range corpus {
		corpus[i] = domain.VideoItem{
			ID:       fmt.Sprintf("v%d", i),
			Title:    fmt.Sprintf("Video %d", i),
			Category: "general",
		}
	}
	return corpus
}

func ids(items []domain.VideoItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestRankEmptyCorpus(t *testing.T) {
	r := seededRanker(1)
	assert.Empty(t, r.Rank(nil, domain.InteractionState{}, nil))
	assert.Empty(t, r.Rank([]domain.VideoItem{}, domain.InteractionState{}, []string{"cooking"}))
}

func TestRankNoDuplicatesAndSubset(t *testing.T) {
	corpus := makeCorpus(10)
	// Untrusted input: repeat some entries
	corpus = append(corpus, corpus[0], corpus[3], corpus[3])

	r := seededRanker(2)
	result := r.Rank(corpus, domain.InteractionState{}, nil)

	seen := make(map[string]bool)
	valid := make(map[string]bool)
	for _, item := range corpus {
		valid[item.ID] = true
	}
	for _, item := range result {
		assert.False(t, seen[item.ID], "duplicate id %s in result", item.ID)
		seen[item.ID] = true
		assert.True(t, valid[item.ID], "id %s not in corpus", item.ID)
	}
	assert.Len(t, result, 10)
}

func TestRankSafetyNet(t *testing.T) {
	corpus := makeCorpus(6)
	var ix domain.InteractionState
	for _, item := range corpus {
		ix.Dislike(item.ID)
	}

	r := seededRanker(3)
	result := r.Rank(corpus, ix, nil)

	// Every item disliked still yields a full shuffled feed
	require.Len(t, result, len(corpus))
	assert.ElementsMatch(t, ids(corpus), ids(result))
}

func TestRankRecyclesWatched(t *testing.T) {
	corpus := makeCorpus(8)
	var ix domain.InteractionState
	for _, item := range corpus {
		ix.RecordProgress(item.ID, 0.95)
	}

	r := seededRanker(4)
	result := r.Rank(corpus, ix, nil)

	assert.ElementsMatch(t, ids(corpus), ids(result))
}

func TestRankExcludesWatchedAndDisliked(t *testing.T) {
	corpus := makeCorpus(6)
	var ix domain.InteractionState
	ix.RecordProgress("v0", 0.9) // watched
	ix.Dislike("v1")
	ix.RecordProgress("v2", 0.8) // exactly at threshold: still unwatched

	r := seededRanker(5)
	result := r.Rank(corpus, ix, nil)

	assert.ElementsMatch(t, []string{"v2", "v3", "v4", "v5"}, ids(result))
}

func TestRankInterestBias(t *testing.T) {
	// 5 favored and 15 unfavored items. The interest boost dwarfs the
	// random base score, so favored items land in the top quarter on
	// every trial; well above the 25% chance rate.
	var corpus []domain.VideoItem
	for i := 0; i < 5; i++ {
		corpus = append(corpus, domain.VideoItem{ID: fmt.Sprintf("fav%d", i), Category: "cooking"})
	}
	for i := 0; i < 15; i++ {
		corpus = append(corpus, domain.VideoItem{ID: fmt.Sprintf("other%d", i), Category: "sports"})
	}

	r := seededRanker(6)
	for trial := 0; trial < 50; trial++ {
		result := r.Rank(corpus, domain.InteractionState{}, []string{"cooking"})
		require.Len(t, result, 20)
		for i := 0; i < 5; i++ {
			assert.Equal(t, "cooking", result[i].Category, "trial %d position %d", trial, i)
		}
	}
}

func TestRankTrendingBoost(t *testing.T) {
	corpus := makeCorpus(10)
	corpus[7].Trending = true

	r := seededRanker(7)
	for trial := 0; trial < 20; trial++ {
		result := r.Rank(corpus, domain.InteractionState{}, nil)
		// Trending boost of 20 always beats the 0-10 base draw
		assert.Equal(t, "v7", result[0].ID, "trial %d", trial)
	}
}

func TestRankDefaultEntropy(t *testing.T) {
	r := NewRanker(nil)
	result := r.Rank(makeCorpus(5), domain.InteractionState{}, nil)
	assert.Len(t, result, 5)
}

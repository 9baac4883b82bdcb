package search

import (
	"testing"

	"github.com/reelay/reelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCorpus() []domain.VideoItem {
	return []domain.VideoItem{
		{ID: "1", Title: "Sourdough Basics", Category: "cooking"},
		{ID: "2", Title: "Sour Candy Review", Category: "food"},
		{ID: "3", Title: "Mountain Biking 101", Category: "sports"},
		{ID: "4", Title: "Biking the Alps", Category: "travel"},
	}
}

func TestSearchRanksByDistance(t *testing.T) {
	s := NewService(nil)
	s.Index(testCorpus())

	results := s.Search("sourdough")
	require.NotEmpty(t, results)
	assert.Equal(t, "1", results[0].ID)
}

func TestSearchEmptyQuery(t *testing.T) {
	s := NewService(nil)
	s.Index(testCorpus())

	assert.Nil(t, s.Search(""))
	assert.Nil(t, s.Search("   "))
}

func TestIndexDeduplicatesByID(t *testing.T) {
	s := NewService(nil)
	corpus := testCorpus()
	s.Index(corpus)
	s.Index(corpus) // re-indexing the same corpus adds nothing

	results := s.Filter("biking")
	assert.Len(t, results, 2)
}

func TestFilterReturnsMatchPositions(t *testing.T) {
	s := NewService(nil)
	s.Index(testCorpus())

	results := s.Filter("biking")
	require.NotEmpty(t, results)
	for _, m := range results {
		assert.NotEmpty(t, m.MatchedIndexes)
	}
}

func TestFilterByCategory(t *testing.T) {
	s := NewService(nil)
	s.Index(testCorpus())

	results := s.FilterByCategory("Cooking")
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].ID)
}

func TestClear(t *testing.T) {
	s := NewService(nil)
	s.Index(testCorpus())
	s.Clear()

	assert.Empty(t, s.Search("biking"))
	assert.Empty(t, s.Filter("biking"))
}

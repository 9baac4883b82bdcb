package search

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
	sahilm "github.com/sahilm/fuzzy"

	"github.com/reelay/reelay/internal/domain"
)

// corpusIndex implements sahilm/fuzzy.Source for zero-allocation matching
type corpusIndex struct {
	items       []domain.VideoItem
	lowerTitles []string // Pre-computed lowercase titles
}

// String returns the lowercase title at index i (implements fuzzy.Source)
func (idx *corpusIndex) String(i int) string { return idx.lowerTitles[i] }

// Len returns the number of items (implements fuzzy.Source)
func (idx *corpusIndex) Len() int { return len(idx.items) }

// Match is a filter hit with metadata for highlighting.
type Match struct {
	Item           domain.VideoItem
	MatchedIndexes []int
	Score          int
}

// Service provides fuzzy title search over the video corpus for the
// discovery surface.
type Service struct {
	logger *slog.Logger

	mu      sync.RWMutex
	index   *corpusIndex
	indexed map[string]bool // Track indexed item IDs to avoid duplicates
}

// NewService creates an empty search service; callers index the corpus as
// it arrives.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:  logger,
		index:   &corpusIndex{},
		indexed: make(map[string]bool),
	}
}

// Index adds corpus items to the search index, deduplicating by id.
// Lowercase titles are pre-computed at index time.
func (s *Service) Index(corpus []domain.VideoItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, item := range corpus {
		if s.indexed[item.ID] {
			continue
		}
		s.indexed[item.ID] = true
		s.index.items = append(s.index.items, item)
		s.index.lowerTitles = append(s.index.lowerTitles, strings.ToLower(item.Title))
		added++
	}

	s.logger.Debug("indexed corpus", "added", added, "total", len(s.index.items))
}

// Clear empties the index.
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index = &corpusIndex{}
	s.indexed = make(map[string]bool)
}

// Search ranks indexed items against query by fuzzy title distance,
// best matches first.
func (s *Service) Search(query string) []domain.VideoItem {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := fuzzy.RankFindFold(query, s.index.lowerTitles)
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	results := make([]domain.VideoItem, 0, len(matches))
	for _, match := range matches {
		results = append(results, s.index.items[match.OriginalIndex])
	}
	return results
}

// Filter performs subsequence matching against the index, returning hits
// with matched character positions for highlighting.
func (s *Service) Filter(query string) []Match {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := sahilm.FindFrom(strings.ToLower(query), s.index)

	results := make([]Match, len(matches))
	for i, match := range matches {
		results[i] = Match{
			Item:           s.index.items[match.Index],
			MatchedIndexes: match.MatchedIndexes,
			Score:          match.Score,
		}
	}
	return results
}

// FilterByCategory returns indexed items in the given category.
func (s *Service) FilterByCategory(category string) []domain.VideoItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := make([]domain.VideoItem, 0)
	for _, item := range s.index.items {
		if strings.EqualFold(item.Category, category) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

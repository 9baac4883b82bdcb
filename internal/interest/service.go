package interest

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/reelay/reelay/internal/domain"
)

// Service maintains the user's interest profile: a set of category strings
// that only ever grows. The profile is persisted locally on every change and
// can absorb a remote copy via MergeRemote; merging is a set union, so a
// category recorded on any device survives everywhere.
type Service struct {
	store  domain.ProfileStore
	logger *slog.Logger

	mu         sync.RWMutex
	categories map[string]bool
}

// NewService creates the interest service and loads the persisted profile.
// A load failure starts with an empty profile rather than failing the host.
func NewService(store domain.ProfileStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		store:      store,
		logger:     logger,
		categories: make(map[string]bool),
	}

	cats, err := store.LoadProfile()
	if err != nil {
		logger.Warn("failed to load interest profile", "error", err)
		return s
	}
	for _, c := range cats {
		if c = strings.TrimSpace(c); c != "" {
			s.categories[c] = true
		}
	}
	return s
}

// Record adds a category to the profile and persists the change.
// Already-known categories are a no-op.
func (s *Service) Record(category string) {
	category = strings.TrimSpace(category)
	if category == "" {
		return
	}

	s.mu.Lock()
	if s.categories[category] {
		s.mu.Unlock()
		return
	}
	s.categories[category] = true
	s.mu.Unlock()

	s.logger.Debug("recorded interest", "category", category)
	s.persist()
}

// MergeRemote unions a remote profile copy into the local one. The local
// profile never shrinks.
func (s *Service) MergeRemote(remote []string) {
	added := 0
	s.mu.Lock()
	for _, c := range remote {
		if c = strings.TrimSpace(c); c == "" || s.categories[c] {
			continue
		}
		s.categories[c] = true
		added++
	}
	s.mu.Unlock()

	if added == 0 {
		return
	}
	s.logger.Debug("merged remote profile", "added", added)
	s.persist()
}

// Categories returns a sorted snapshot of the profile.
func (s *Service) Categories() []string {
	s.mu.RLock()
	cats := make([]string, 0, len(s.categories))
	for c := range s.categories {
		cats = append(cats, c)
	}
	s.mu.RUnlock()

	sort.Strings(cats)
	return cats
}

func (s *Service) persist() {
	if err := s.store.SaveProfile(s.Categories()); err != nil {
		s.logger.Error("failed to persist interest profile", "error", err)
	}
}

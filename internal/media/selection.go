package media

import (
	"sort"
	"sync"
)

// SelectionSet tracks the media ids the user has marked, typically for a
// bulk download or delete. It never holds ids the user cannot currently see:
// filter changes and deletes prune it.
type SelectionSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewSelectionSet() *SelectionSet {
	return &SelectionSet{ids: make(map[string]struct{})}
}

// Toggle flips membership and reports the new state.
func (s *SelectionSet) Toggle(mediaID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[mediaID]; ok {
		delete(s.ids, mediaID)
		return false
	}
	s.ids[mediaID] = struct{}{}
	return true
}

// Remove drops mediaID if present.
func (s *SelectionSet) Remove(mediaID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, mediaID)
}

// Has reports membership.
func (s *SelectionSet) Has(mediaID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[mediaID]
	return ok
}

// IDs returns the selected ids in sorted order.
func (s *SelectionSet) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len reports the selection size.
func (s *SelectionSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Clear empties the selection.
func (s *SelectionSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[string]struct{})
}

// PruneTo drops every id not in visible, keeping the selection consistent
// with what the user can see after a filter change.
func (s *SelectionSet) PruneTo(visible []string) {
	keep := make(map[string]struct{}, len(visible))
	for _, id := range visible {
		keep[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.ids {
		if _, ok := keep[id]; !ok {
			delete(s.ids, id)
		}
	}
}

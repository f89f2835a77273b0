package tools

import (
	"sync"
)

// Selection tracks which of the available tools are active for the next
// question.
type Selection struct {
	mu        sync.RWMutex
	available []Descriptor
	selected  map[string]struct{}
}

// NewSelection creates an empty selection
func NewSelection() *Selection {
	return &Selection{
		selected: make(map[string]struct{}),
	}
}

// Load replaces the available tools and selects all of them
func (s *Selection) Load(available map[string]string) {
	descriptors := Describe(available)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.available = descriptors
	s.selected = make(map[string]struct{}, len(descriptors))
	for _, d := range descriptors {
		s.selected[d.ID] = struct{}{}
	}
}

// Toggle flips membership of id. Unknown ids are ignored.
func (s *Selection) Toggle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.knownLocked(id) {
		return
	}
	if _, ok := s.selected[id]; ok {
		delete(s.selected, id)
		return
	}
	s.selected[id] = struct{}{}
}

// SelectAll activates every available tool
func (s *Selection) SelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.available {
		s.selected[d.ID] = struct{}{}
	}
}

// ClearAll deactivates every tool
func (s *Selection) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = make(map[string]struct{})
}

// Set replaces the selection with the given ids, ignoring unknown ones. It
// returns how many ids were applied.
func (s *Selection) Set(ids []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if s.knownLocked(id) {
			next[id] = struct{}{}
		}
	}
	s.selected = next
	return len(next)
}

// Selected returns the active ids in descriptor order
func (s *Selection) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.selected))
	for _, d := range s.available {
		if _, ok := s.selected[d.ID]; ok {
			out = append(out, d.ID)
		}
	}
	return out
}

// Snapshot is an alias for Selected that documents intent at submit time:
// the returned slice never changes when the selection does.
func (s *Selection) Snapshot() []string {
	return s.Selected()
}

// Available returns the loaded descriptors sorted by id
func (s *Selection) Available() []Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Descriptor(nil), s.available...)
}

// Known reports whether id is one of the available tools
func (s *Selection) Known(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.knownLocked(id)
}

func (s *Selection) IsSelected(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.selected[id]
	return ok
}

func (s *Selection) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.selected) == 0
}

func (s *Selection) AllSelected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.available) > 0 && len(s.selected) == len(s.available)
}

func (s *Selection) knownLocked(id string) bool {
	for _, d := range s.available {
		if d.ID == id {
			return true
		}
	}
	return false
}

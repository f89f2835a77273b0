package history

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/nachoal/kaizen-chat/stream"
)

// Store keeps the most recent exchanges of a session, newest first. At most
// one entry is expanded at any time.
type Store struct {
	mu      sync.RWMutex
	entries []Exchange
	now     func() time.Time
	entropy *ulid.MonotonicEntropy
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the clock used to timestamp exchanges
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty history store
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: make([]Exchange, 0, MaxEntries),
		now:     time.Now,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record inserts a completed exchange at the front, evicting the oldest entry
// once the store holds more than MaxEntries. The tools slice is copied.
func (s *Store) Record(question, answer string, md *stream.Metadata, tools []string) Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := 1
	if len(s.entries) > 0 {
		seq = s.entries[0].Sequence + 1
	}

	ts := s.now()
	entry := Exchange{
		ID:        s.newID(ts),
		Question:  question,
		Answer:    answer,
		Tools:     append([]string(nil), tools...),
		Timestamp: ts,
		Sequence:  seq,
	}
	if md != nil {
		copied := *md
		entry.Metadata = &copied
	}

	entries := make([]Exchange, 0, MaxEntries)
	entries = append(entries, entry)
	entries = append(entries, s.entries...)
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	s.entries = entries

	return entry.clone()
}

// Toggle collapses every entry and then flips the target relative to its
// previous state, so toggling an expanded entry leaves all collapsed.
// Out-of-range indices are ignored.
func (s *Store) Toggle(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.entries) {
		return
	}
	wasExpanded := s.entries[index].Expanded
	for i := range s.entries {
		s.entries[i].Expanded = false
	}
	s.entries[index].Expanded = !wasExpanded
}

// Entries returns a snapshot of the history, newest first
func (s *Store) Entries() []Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Exchange, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.clone()
	}
	return out
}

// Get returns the entry at index
func (s *Store) Get(index int) (Exchange, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.entries) {
		return Exchange{}, false
	}
	return s.entries[index].clone(), true
}

// Expanded returns the index of the expanded entry, or -1
func (s *Store) Expanded() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, e := range s.entries {
		if e.Expanded {
			return i
		}
	}
	return -1
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// newID must be called with s.mu held; the monotonic source keeps ids
// recorded within the same millisecond distinct and ordered.
func (s *Store) newID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nachoal/kaizen-chat/stream"
)

func tickingClock() func() time.Time {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func expandedCount(entries []Exchange) int {
	count := 0
	for _, e := range entries {
		if e.Expanded {
			count++
		}
	}
	return count
}

func TestRecordAssignsSequenceNewestFirst(t *testing.T) {
	s := NewStore(WithClock(tickingClock()))

	first := s.Record("q1", "🤖 a1", nil, []string{"svc_search"})
	second := s.Record("q2", "🤖 a2", &stream.Metadata{Model: "m"}, []string{"svc_search", "svc_docs"})

	assert.Equal(t, 1, first.Sequence)
	assert.Equal(t, 2, second.Sequence)

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "q2", entries[0].Question)
	assert.Equal(t, "q1", entries[1].Question)
	assert.Equal(t, "m", entries[0].Metadata.Model)
	assert.Nil(t, entries[1].Metadata)
	assert.False(t, entries[0].Expanded)

	_, err := ulid.Parse(entries[0].ID)
	assert.NoError(t, err)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestRecordEvictsOldestBeyondCap(t *testing.T) {
	s := NewStore(WithClock(tickingClock()))
	for i := 1; i <= MaxEntries+1; i++ {
		s.Record(fmt.Sprintf("q%d", i), "a", nil, []string{"t"})
	}

	entries := s.Entries()
	require.Len(t, entries, MaxEntries)
	assert.Equal(t, 11, entries[0].Sequence)
	assert.Equal(t, "q11", entries[0].Question)
	assert.Equal(t, 2, entries[MaxEntries-1].Sequence, "the first exchange is evicted")

	for i := 1; i < len(entries); i++ {
		assert.Greater(t, entries[i-1].Sequence, entries[i].Sequence)
	}
}

func TestRecordDoesNotChangeExpansionOfOthers(t *testing.T) {
	s := NewStore()
	s.Record("q1", "a1", nil, nil)
	s.Toggle(0)
	s.Record("q2", "a2", nil, nil)

	entries := s.Entries()
	assert.False(t, entries[0].Expanded)
	assert.True(t, entries[1].Expanded)
}

func TestToggleKeepsAtMostOneExpanded(t *testing.T) {
	s := NewStore()
	for i := 0; i < 3; i++ {
		s.Record(fmt.Sprintf("q%d", i), "a", nil, nil)
	}

	s.Toggle(0)
	entries := s.Entries()
	assert.True(t, entries[0].Expanded)
	assert.Equal(t, 1, expandedCount(entries))

	s.Toggle(2)
	entries = s.Entries()
	assert.False(t, entries[0].Expanded)
	assert.True(t, entries[2].Expanded)
	assert.Equal(t, 1, expandedCount(entries))
	assert.Equal(t, 2, s.Expanded())

	s.Toggle(2)
	entries = s.Entries()
	assert.Equal(t, 0, expandedCount(entries))
	assert.Equal(t, -1, s.Expanded())
}

func TestToggleOutOfRangeIsNoop(t *testing.T) {
	s := NewStore()
	s.Record("q", "a", nil, nil)
	s.Toggle(0)

	s.Toggle(5)
	s.Toggle(-1)

	assert.Equal(t, 0, s.Expanded())
}

func TestRecordCopiesTools(t *testing.T) {
	s := NewStore()
	tools := []string{"svc_a", "svc_b"}
	s.Record("q", "a", nil, tools)

	tools[0] = "mutated"
	entries := s.Entries()
	assert.Equal(t, []string{"svc_a", "svc_b"}, entries[0].Tools)

	entries[0].Tools[1] = "mutated"
	got, ok := s.Get(0)
	require.True(t, ok)
	assert.Equal(t, []string{"svc_a", "svc_b"}, got.Tools)
}

func TestToolSummary(t *testing.T) {
	assert.Equal(t, "1 tool was active", Exchange{Tools: []string{"a"}}.ToolSummary())
	assert.Equal(t, "3 tools were active", Exchange{Tools: []string{"a", "b", "c"}}.ToolSummary())
}

func TestRecordIDsUniqueWithinSameInstant(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore(WithClock(func() time.Time { return at }))

	a := s.Record("q1", "🤖 a1", nil, nil)
	b := s.Record("q2", "🤖 a2", nil, nil)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Less(t, a.ID, b.ID, "ids recorded in the same millisecond stay ordered")
}

package chat

import (
	"strings"
	"sync"

	"github.com/nachoal/kaizen-chat/stream"
)

// Accumulator collects the answer text and latest metadata of one submission
type Accumulator struct {
	mu       sync.RWMutex
	text     strings.Builder
	metadata *stream.Metadata
}

// Reset clears text and metadata
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.text.Reset()
	a.metadata = nil
}

// AppendText appends a fragment in arrival order
func (a *Accumulator) AppendText(fragment string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.text.WriteString(fragment)
}

// SetMetadata replaces any earlier metadata wholesale
func (a *Accumulator) SetMetadata(md stream.Metadata) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metadata = &md
}

func (a *Accumulator) Text() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.text.String()
}

// Metadata returns a copy of the latest metadata, or nil
func (a *Accumulator) Metadata() *stream.Metadata {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.metadata == nil {
		return nil
	}
	md := *a.metadata
	return &md
}

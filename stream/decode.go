package stream

import (
	"encoding/json"
	"math"
)

// FrameKind identifies what a decoded chunk carries
type FrameKind int

const (
	FrameText FrameKind = iota
	FrameMetadata
)

func (k FrameKind) String() string {
	switch k {
	case FrameText:
		return "text"
	case FrameMetadata:
		return "metadata"
	default:
		return "unknown"
	}
}

// Frame is the decoded form of a single transport chunk
type Frame struct {
	Kind     FrameKind
	Text     string
	Metadata *Metadata
}

// TextFrame wraps a raw chunk as answer text
func TextFrame(content string) Frame {
	return Frame{Kind: FrameText, Text: content}
}

// MetadataFrame wraps a metadata record
func MetadataFrame(md Metadata) Frame {
	return Frame{Kind: FrameMetadata, Metadata: &md}
}

// Decode classifies one chunk. A chunk is metadata only when it parses as a
// JSON object whose isMetadata and metadata members are both truthy; every
// other chunk, including malformed JSON, is returned verbatim as text.
func Decode(chunk string) Frame {
	var envelope map[string]any
	if err := json.Unmarshal([]byte(chunk), &envelope); err != nil {
		return TextFrame(chunk)
	}
	if envelope == nil {
		return TextFrame(chunk)
	}

	if !truthy(envelope["isMetadata"]) || !truthy(envelope["metadata"]) {
		return TextFrame(chunk)
	}

	// A truthy non-object payload still counts as metadata, just an empty one.
	fields, _ := envelope["metadata"].(map[string]any)
	return MetadataFrame(metadataFromMap(fields))
}

// truthy mirrors the loose truthiness rules the chat servers rely on when
// they flag metadata frames.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	default:
		return true
	}
}

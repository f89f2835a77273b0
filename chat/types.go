package chat

import (
	"errors"

	"github.com/nachoal/kaizen-chat/history"
	"github.com/nachoal/kaizen-chat/stream"
)

// DefaultMarker prefixes every streamed answer
const DefaultMarker = "🤖 "

// User-facing alert messages
const (
	MsgEmptyQuestion = "Please enter a question"
	MsgNoTools       = "Please select at least one tool"
	MsgRequestFailed = "Error processing chat request"
)

// ErrBusy is returned when a submission is already in flight
var ErrBusy = errors.New("a chat request is already in progress")

// ValidationError rejects a submission before any network traffic
type ValidationError struct {
	Message string
	AlertID int
}

func (e *ValidationError) Error() string {
	return e.Message
}

// State is the lifecycle of the submit controller
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateStreaming
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateStreaming:
		return "streaming"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EventType represents the type of submission event
type EventType string

const (
	EventStreaming EventType = "streaming"
	EventText      EventType = "text"
	EventMetadata  EventType = "metadata"
	EventComplete  EventType = "complete"
	EventError     EventType = "error"
)

// Event reports progress of a submission. Answer is always the full visible
// answer so far, marker included.
type Event struct {
	Type     EventType
	RunID    string
	Text     string
	Answer   string
	Metadata *stream.Metadata
	Exchange *history.Exchange
	Err      error
	AlertID  int
}

// Terminal reports whether the event ends the submission
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

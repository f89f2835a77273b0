package history

import (
	"fmt"
	"time"

	"github.com/nachoal/kaizen-chat/stream"
)

// MaxEntries is the number of exchanges kept per session
const MaxEntries = 10

// Exchange is one completed question and answer
type Exchange struct {
	ID        string           `json:"id"`
	Question  string           `json:"question"`
	Answer    string           `json:"answer"`
	Metadata  *stream.Metadata `json:"metadata,omitempty"`
	Tools     []string         `json:"tools"`
	Timestamp time.Time        `json:"timestamp"`
	Expanded  bool             `json:"expanded"`
	Sequence  int              `json:"sequence"`
}

// ToolSummary describes how many tools were active, e.g. "1 tool was active"
func (e Exchange) ToolSummary() string {
	switch n := len(e.Tools); n {
	case 0:
		return "no tools were active"
	case 1:
		return "1 tool was active"
	default:
		return fmt.Sprintf("%d tools were active", n)
	}
}

func (e Exchange) clone() Exchange {
	out := e
	if e.Metadata != nil {
		md := *e.Metadata
		out.Metadata = &md
	}
	out.Tools = append([]string(nil), e.Tools...)
	return out
}

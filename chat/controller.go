package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nachoal/kaizen-chat/api"
	"github.com/nachoal/kaizen-chat/history"
	"github.com/nachoal/kaizen-chat/stream"
	"github.com/nachoal/kaizen-chat/tools"
)

const eventBuffer = 64

// Controller drives one question at a time through the chat server, feeding
// the streamed answer into an Accumulator and recording successful
// exchanges in the history store.
type Controller struct {
	client    api.Client
	selection *tools.Selection
	history   *history.Store
	alerts    *Alerts
	acc       Accumulator
	marker    string
	framing   stream.Framing
	logger    *zap.Logger

	mu       sync.RWMutex
	state    State
	question string
	seeded   bool
	runSeq   int
}

// Option configures a Controller
type Option func(*Controller)

// WithMarker sets the prefix of every answer. An empty marker is allowed.
func WithMarker(marker string) Option {
	return func(c *Controller) {
		c.marker = marker
	}
}

// WithFraming selects how response bodies are cut into chunks
func WithFraming(f stream.Framing) Option {
	return func(c *Controller) {
		c.framing = f
	}
}

func WithAlerts(a *Alerts) Option {
	return func(c *Controller) {
		c.alerts = a
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController creates a controller
func NewController(client api.Client, selection *tools.Selection, store *history.Store, opts ...Option) *Controller {
	c := &Controller{
		client:    client,
		selection: selection,
		history:   store,
		marker:    DefaultMarker,
		framing:   stream.FramingChunks,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.alerts == nil {
		c.alerts = NewAlerts(DefaultAlertDuration)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Submit validates the question and current tool selection, then streams
// the answer in the background. Events arrive in order on the returned
// channel, which is closed after the terminal Complete or Error event. By
// the time a terminal event is delivered the controller is Idle again.
func (c *Controller) Submit(ctx context.Context, question string) (<-chan Event, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if strings.TrimSpace(question) == "" {
		c.mu.Unlock()
		return nil, c.invalid(MsgEmptyQuestion)
	}
	if c.selection.Empty() {
		c.mu.Unlock()
		return nil, c.invalid(MsgNoTools)
	}

	toolIDs := c.selection.Snapshot()
	c.state = StateSubmitting
	c.question = question
	c.seeded = false
	c.acc.Reset()
	c.runSeq++
	seq := c.runSeq
	runID := "run-" + strconv.Itoa(seq)
	c.mu.Unlock()

	c.logger.Info("chat submit",
		zap.String("run", runID),
		zap.Int("question_len", len(question)),
		zap.Strings("tools", toolIDs),
	)

	events := make(chan Event, eventBuffer)
	go c.run(ctx, seq, question, toolIDs, events)
	return events, nil
}

// Resubmit restores the question and tools of a history entry. Tools that
// are no longer available are dropped; if none remain the current
// selection is kept. It returns the question to place in the input box.
func (c *Controller) Resubmit(index int) (string, error) {
	entry, ok := c.history.Get(index)
	if !ok {
		return "", fmt.Errorf("no history entry at index %d", index)
	}

	var known []string
	for _, id := range entry.Tools {
		if c.selection.Known(id) {
			known = append(known, id)
		}
	}
	if len(known) > 0 {
		c.selection.Set(known)
	}
	return entry.Question, nil
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Busy reports whether a submission is in flight
func (c *Controller) Busy() bool {
	return c.State() != StateIdle
}

func (c *Controller) CurrentQuestion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.question
}

// Answer returns the visible answer: empty until the server accepts the
// request, then the marker followed by the text received so far.
func (c *Controller) Answer() string {
	c.mu.RLock()
	seeded := c.seeded
	c.mu.RUnlock()
	if !seeded {
		return ""
	}
	return c.marker + c.acc.Text()
}

func (c *Controller) Metadata() *stream.Metadata {
	return c.acc.Metadata()
}

func (c *Controller) Alerts() *Alerts {
	return c.alerts
}

func (c *Controller) History() *history.Store {
	return c.history
}

func (c *Controller) Selection() *tools.Selection {
	return c.selection
}

func (c *Controller) invalid(message string) *ValidationError {
	return &ValidationError{Message: message, AlertID: c.alerts.Show(message)}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
	if s == StateStreaming {
		c.seeded = true
	}
}

// release returns the controller to Idle unless a newer run has started
func (c *Controller) release(seq int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runSeq == seq {
		c.state = StateIdle
	}
}

func (c *Controller) run(ctx context.Context, seq int, question string, toolIDs []string, events chan<- Event) {
	runID := "run-" + strconv.Itoa(seq)
	defer close(events)
	// Whatever happens, the controller must accept the next question.
	defer c.release(seq)

	start := time.Now()
	entry, chunks, err := c.stream(ctx, runID, question, toolIDs, events)
	if err != nil {
		c.setState(StateFailed)
		alertID := c.alerts.Show(MsgRequestFailed)
		c.logger.Warn("chat failed",
			zap.String("run", runID),
			zap.Int("chunks", chunks),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		c.release(seq)
		c.deliver(ctx, events, Event{Type: EventError, RunID: runID, Err: err, AlertID: alertID})
		return
	}

	c.logger.Info("chat complete",
		zap.String("run", runID),
		zap.String("exchange", entry.ID),
		zap.Int("chunks", chunks),
		zap.Int("answer_len", len(entry.Answer)),
		zap.Duration("elapsed", time.Since(start)),
	)
	c.release(seq)
	c.deliver(ctx, events, Event{
		Type:     EventComplete,
		RunID:    runID,
		Answer:   entry.Answer,
		Metadata: entry.Metadata,
		Exchange: &entry,
	})
}

func (c *Controller) stream(ctx context.Context, runID, question string, toolIDs []string, events chan<- Event) (history.Exchange, int, error) {
	body, err := c.client.StreamChat(ctx, api.Inquiry{Question: question, Tools: toolIDs})
	if err != nil {
		return history.Exchange{}, 0, err
	}
	defer body.Close()

	c.setState(StateStreaming)
	if err := c.deliver(ctx, events, Event{Type: EventStreaming, RunID: runID, Answer: c.Answer()}); err != nil {
		return history.Exchange{}, 0, err
	}

	chunks := 0
	err = stream.NewReader(body, c.framing).Frames(func(f stream.Frame) error {
		chunks++
		switch f.Kind {
		case stream.FrameMetadata:
			c.acc.SetMetadata(*f.Metadata)
			return c.deliver(ctx, events, Event{Type: EventMetadata, RunID: runID, Answer: c.Answer(), Metadata: c.acc.Metadata()})
		default:
			c.acc.AppendText(f.Text)
			return c.deliver(ctx, events, Event{Type: EventText, RunID: runID, Text: f.Text, Answer: c.Answer()})
		}
	})
	if err != nil {
		return history.Exchange{}, chunks, err
	}

	entry := c.history.Record(question, c.Answer(), c.acc.Metadata(), toolIDs)
	return entry, chunks, nil
}

func (c *Controller) deliver(ctx context.Context, events chan<- Event, ev Event) error {
	// Prefer delivery when there is room, even if ctx is already done.
	select {
	case events <- ev:
		return nil
	default:
	}
	select {
	case events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

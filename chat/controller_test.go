package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nachoal/kaizen-chat/api"
	"github.com/nachoal/kaizen-chat/history"
	"github.com/nachoal/kaizen-chat/stream"
	"github.com/nachoal/kaizen-chat/tools"
)

// chunkBody returns one piece per Read, optionally waiting on gate before the
// first piece and failing with err once the pieces run out.
type chunkBody struct {
	pieces []string
	err    error
	gate   chan struct{}
}

func (b *chunkBody) Read(p []byte) (int, error) {
	if b.gate != nil {
		<-b.gate
		b.gate = nil
	}
	if len(b.pieces) == 0 {
		if b.err != nil {
			return 0, b.err
		}
		return 0, io.EOF
	}
	n := copy(p, b.pieces[0])
	b.pieces = b.pieces[1:]
	return n, nil
}

func (b *chunkBody) Close() error { return nil }

type fakeClient struct {
	mu        sync.Mutex
	inquiries []api.Inquiry
	body      *chunkBody
	err       error
}

func (f *fakeClient) Tools(context.Context) (map[string]string, error) { return nil, nil }
func (f *fakeClient) Greeting(context.Context) (string, error)         { return "", nil }
func (f *fakeClient) Close() error                                     { return nil }

func (f *fakeClient) StreamChat(_ context.Context, inquiry api.Inquiry) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inquiries = append(f.inquiries, inquiry)
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

func (f *fakeClient) calls() []api.Inquiry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.Inquiry(nil), f.inquiries...)
}

func newSelection(ids ...string) *tools.Selection {
	available := make(map[string]string, len(ids))
	for _, id := range ids {
		available[id] = id + " description"
	}
	s := tools.NewSelection()
	s.Load(available)
	return s
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %d so far", len(out))
		}
	}
}

func TestSubmitStreamsAndRecordsExchange(t *testing.T) {
	client := &fakeClient{body: &chunkBody{pieces: []string{
		"Hello",
		" world",
		`{"isMetadata":true,"metadata":{"model":"m","totalTokens":5}}`,
	}}}
	store := history.NewStore()
	c := NewController(client, newSelection("svc_a", "svc_b"), store)

	events, err := c.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	got := collect(t, events)

	require.Len(t, got, 5)
	assert.Equal(t, EventStreaming, got[0].Type)
	assert.Equal(t, "🤖 ", got[0].Answer)
	assert.Equal(t, EventText, got[1].Type)
	assert.Equal(t, "🤖 Hello", got[1].Answer)
	assert.Equal(t, "🤖 Hello world", got[2].Answer)
	assert.Equal(t, EventMetadata, got[3].Type)
	assert.Equal(t, "m", got[3].Metadata.Model)
	assert.Equal(t, EventComplete, got[4].Type)
	require.NotNil(t, got[4].Exchange)

	entries := store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Hi", entries[0].Question)
	assert.Equal(t, "🤖 Hello world", entries[0].Answer)
	require.NotNil(t, entries[0].Metadata)
	assert.Equal(t, "m", entries[0].Metadata.Model)
	assert.Equal(t, int64(5), entries[0].Metadata.TotalTokens)
	assert.Equal(t, []string{"svc_a", "svc_b"}, entries[0].Tools)
	assert.Equal(t, 1, entries[0].Sequence)
	assert.False(t, entries[0].Expanded)

	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, []api.Inquiry{{Question: "Hi", Tools: []string{"svc_a", "svc_b"}}}, client.calls())
	_, alerted := c.Alerts().Current()
	assert.False(t, alerted)
}

func TestMalformedJSONChunkIsText(t *testing.T) {
	client := &fakeClient{body: &chunkBody{pieces: []string{`{"isMetadata": true, "metadata": {`}}}
	store := history.NewStore()
	c := NewController(client, newSelection("svc_a"), store)

	events, err := c.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	collect(t, events)

	entries := store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, `🤖 {"isMetadata": true, "metadata": {`, entries[0].Answer)
	assert.Nil(t, entries[0].Metadata)
}

func TestMetadataLastWriteWins(t *testing.T) {
	client := &fakeClient{body: &chunkBody{pieces: []string{
		`{"isMetadata":true,"metadata":{"model":"first","totalTokens":3}}`,
		"text",
		`{"isMetadata":true,"metadata":{"model":"second"}}`,
	}}}
	store := history.NewStore()
	c := NewController(client, newSelection("svc_a"), store)

	events, err := c.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	collect(t, events)

	entry, ok := store.Get(0)
	require.True(t, ok)
	require.NotNil(t, entry.Metadata)
	assert.Equal(t, "second", entry.Metadata.Model)
	assert.Zero(t, entry.Metadata.TotalTokens, "metadata records are replaced, never merged")
	assert.Equal(t, "🤖 text", entry.Answer)
}

func TestMidStreamFailureLeavesHistoryUntouched(t *testing.T) {
	client := &fakeClient{body: &chunkBody{pieces: []string{"partial"}, err: errors.New("connection reset")}}
	store := history.NewStore()
	c := NewController(client, newSelection("svc_a"), store)

	events, err := c.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	got := collect(t, events)

	last := got[len(got)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Error(t, last.Err)
	assert.Zero(t, store.Len())
	assert.Equal(t, StateIdle, c.State())

	alert, ok := c.Alerts().Current()
	require.True(t, ok)
	assert.Equal(t, MsgRequestFailed, alert.Message)
	assert.Equal(t, alert.ID, last.AlertID)
}

func TestRejectedRequestRaisesGenericAlert(t *testing.T) {
	client := &fakeClient{err: &api.StatusError{Method: "POST", Path: "/stream/chat", Code: 500}}
	store := history.NewStore()
	c := NewController(client, newSelection("svc_a"), store)

	events, err := c.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	got := collect(t, events)

	require.Len(t, got, 1)
	assert.Equal(t, EventError, got[0].Type)
	var statusErr *api.StatusError
	assert.True(t, errors.As(got[0].Err, &statusErr))
	assert.Zero(t, store.Len())
	assert.Equal(t, "", c.Answer(), "the answer is never seeded when headers are rejected")

	alert, ok := c.Alerts().Current()
	require.True(t, ok)
	assert.Equal(t, MsgRequestFailed, alert.Message)

	// The controller accepts the next question after a failure.
	client.mu.Lock()
	client.err = nil
	client.body = &chunkBody{pieces: []string{"ok"}}
	client.mu.Unlock()

	events, err = c.Submit(context.Background(), "again")
	require.NoError(t, err)
	collect(t, events)
	assert.Equal(t, 1, store.Len())
}

func TestValidationBlocksSubmission(t *testing.T) {
	client := &fakeClient{body: &chunkBody{}}
	sel := newSelection("svc_a")
	c := NewController(client, sel, history.NewStore())

	_, err := c.Submit(context.Background(), "   ")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, MsgEmptyQuestion, verr.Message)
	alert, ok := c.Alerts().Current()
	require.True(t, ok)
	assert.Equal(t, MsgEmptyQuestion, alert.Message)

	sel.ClearAll()
	_, err = c.Submit(context.Background(), "What is up?")
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, MsgNoTools, verr.Message)
	alert, ok = c.Alerts().Current()
	require.True(t, ok)
	assert.Equal(t, MsgNoTools, alert.Message)

	assert.Empty(t, client.calls())
	assert.Equal(t, StateIdle, c.State())
}

func TestSingleSubmissionInFlight(t *testing.T) {
	gate := make(chan struct{})
	client := &fakeClient{body: &chunkBody{pieces: []string{"slow"}, gate: gate}}
	c := NewController(client, newSelection("svc_a"), history.NewStore())

	events, err := c.Submit(context.Background(), "first")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return c.State() == StateStreaming }, time.Second, 5*time.Millisecond)
	assert.True(t, c.Busy())

	_, err = c.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)

	close(gate)
	collect(t, events)
	assert.False(t, c.Busy())
	assert.Len(t, client.calls(), 1)
}

func TestToolSnapshotTakenAtSubmit(t *testing.T) {
	gate := make(chan struct{})
	client := &fakeClient{body: &chunkBody{pieces: []string{"answer"}, gate: gate}}
	sel := newSelection("svc_a", "svc_b")
	store := history.NewStore()
	c := NewController(client, sel, store)

	events, err := c.Submit(context.Background(), "Hi")
	require.NoError(t, err)

	sel.ClearAll()
	sel.Toggle("svc_b")
	close(gate)
	collect(t, events)

	entry, ok := store.Get(0)
	require.True(t, ok)
	assert.Equal(t, []string{"svc_a", "svc_b"}, entry.Tools)
}

func TestCustomMarker(t *testing.T) {
	client := &fakeClient{body: &chunkBody{pieces: []string{"plain"}}}
	store := history.NewStore()
	c := NewController(client, newSelection("svc_a"), store, WithMarker(""))

	events, err := c.Submit(context.Background(), "Hi")
	require.NoError(t, err)
	collect(t, events)

	entry, _ := store.Get(0)
	assert.Equal(t, "plain", entry.Answer)
}

func TestCurrentQuestionCapturedOnSubmit(t *testing.T) {
	client := &fakeClient{body: &chunkBody{pieces: []string{"a"}}}
	c := NewController(client, newSelection("svc_a"), history.NewStore())

	events, err := c.Submit(context.Background(), "What is the foundation?")
	require.NoError(t, err)
	assert.Equal(t, "What is the foundation?", c.CurrentQuestion())
	collect(t, events)
}

func TestResubmitRestoresTools(t *testing.T) {
	client := &fakeClient{body: &chunkBody{pieces: []string{"a"}}}
	sel := newSelection("svc_a", "svc_b", "svc_c")
	store := history.NewStore()
	c := NewController(client, sel, store)

	sel.Toggle("svc_c")
	events, err := c.Submit(context.Background(), "first question")
	require.NoError(t, err)
	collect(t, events)

	sel.ClearAll()
	sel.Toggle("svc_c")

	question, err := c.Resubmit(0)
	require.NoError(t, err)
	assert.Equal(t, "first question", question)
	assert.Equal(t, []string{"svc_a", "svc_b"}, sel.Selected())

	sel.Load(map[string]string{"svc_z": "new"})
	_, err = c.Resubmit(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"svc_z"}, sel.Selected(), "selection kept when no original tool survives")

	_, err = c.Resubmit(3)
	assert.Error(t, err)
}

// mixedChunk returns a random chunk and, for metadata chunks, the record it carries
func mixedChunk(rng *rand.Rand, i int) (string, *stream.Metadata) {
	words := []string{"apps", " are", " running", "\n", " ✓", "{", "}", " 42", "ünïcode"}
	notMetadata := []string{
		`{"isMetadata": true, "metadata": {`,
		`{"isMetadata":false,"metadata":{"model":"x"}}`,
		`{"isMetadata":true,"metadata":null}`,
		`{"isMetadata":0,"metadata":{"model":"x"}}`,
		`{"isMetadata":"","metadata":{"model":"x"}}`,
		`{"metadata":{"model":"x"}}`,
		`{"answer":"hi"}`,
		`[1,2,3]`,
		`"quoted"`,
		`null`,
		`0`,
	}

	switch rng.Intn(3) {
	case 0:
		md := &stream.Metadata{Model: fmt.Sprintf("m%d", i), TotalTokens: int64(i + 1)}
		return fmt.Sprintf(`{"isMetadata":true,"metadata":{"model":%q,"totalTokens":%d}}`, md.Model, md.TotalTokens), md
	case 1:
		return notMetadata[rng.Intn(len(notMetadata))], nil
	default:
		return words[rng.Intn(len(words))], nil
	}
}

func TestRandomChunkSequencesAccumulate(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 200; run++ {
		n := rng.Intn(12)
		pieces := make([]string, 0, n)
		var want strings.Builder
		var wantMD *stream.Metadata
		for i := 0; i < n; i++ {
			chunk, md := mixedChunk(rng, i)
			pieces = append(pieces, chunk)
			if md != nil {
				wantMD = md
			} else {
				want.WriteString(chunk)
			}
		}

		store := history.NewStore()
		c := NewController(&fakeClient{body: &chunkBody{pieces: pieces}}, newSelection("svc_a"), store)
		events, err := c.Submit(context.Background(), "q")
		require.NoError(t, err)
		got := collect(t, events)
		require.NotEmpty(t, got)
		require.Equal(t, EventComplete, got[len(got)-1].Type, "run %d: %q", run, pieces)

		entry, ok := store.Get(0)
		require.True(t, ok)
		assert.Equal(t, DefaultMarker+want.String(), entry.Answer, "run %d: %q", run, pieces)
		if wantMD == nil {
			assert.Nil(t, entry.Metadata, "run %d: %q", run, pieces)
		} else {
			require.NotNil(t, entry.Metadata, "run %d: %q", run, pieces)
			assert.Equal(t, *wantMD, *entry.Metadata, "run %d: %q", run, pieces)
		}
	}
}

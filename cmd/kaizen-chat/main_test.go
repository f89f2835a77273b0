package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nachoal/kaizen-chat/chat"
	"github.com/nachoal/kaizen-chat/stream"
	"github.com/nachoal/kaizen-chat/tools"
)

func feed(events ...chat.Event) <-chan chat.Event {
	ch := make(chan chat.Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func TestStreamAnswerWritesIncrementally(t *testing.T) {
	var out bytes.Buffer
	md := &stream.Metadata{Model: "m", ResponseTime: "2s", TotalTokens: 30, TokensPerSecond: 15}

	err := streamAnswer(&out, feed(
		chat.Event{Type: chat.EventStreaming, Answer: "🤖 "},
		chat.Event{Type: chat.EventText, Answer: "🤖 Hello"},
		chat.Event{Type: chat.EventText, Answer: "🤖 Hello world"},
		chat.Event{Type: chat.EventComplete, Answer: "🤖 Hello world", Metadata: md},
	), time.Now())

	require.NoError(t, err)
	assert.Equal(t, "🤖 Hello world\n\n[model: m, time: 2s, total: 30, speed: 15 t/s]\n", out.String())
}

func TestStreamAnswerReportsFailure(t *testing.T) {
	var out bytes.Buffer
	cause := errors.New("connection reset")

	err := streamAnswer(&out, feed(
		chat.Event{Type: chat.EventText, Answer: "🤖 part"},
		chat.Event{Type: chat.EventError, Err: cause},
	), time.Now())

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), chat.MsgRequestFailed)
	assert.Equal(t, "🤖 part\n", out.String())
}

func TestWithClientTimingFillsMissingFields(t *testing.T) {
	md := withClientTiming(&stream.Metadata{TotalTokens: 100}, 4*time.Second)
	assert.Equal(t, "4s", md.ResponseTime)
	assert.Equal(t, 25.0, md.TokensPerSecond)

	kept := withClientTiming(&stream.Metadata{ResponseTime: "9s", TokensPerSecond: 3}, time.Second)
	assert.Equal(t, "9s", kept.ResponseTime)
	assert.Equal(t, 3.0, kept.TokensPerSecond)

	none := withClientTiming(nil, 90*time.Second)
	assert.Equal(t, "1m30s", none.ResponseTime)
	assert.Zero(t, none.TokensPerSecond)
}

func TestResolveTools(t *testing.T) {
	sel := tools.NewSelection()
	sel.Load(map[string]string{"svc_search": "Search", "svc_weather": "Weather"})

	ids, unknown := resolveTools(sel, []string{"svc_search", "Weather", " ", "nope"})
	assert.Equal(t, []string{"svc_search", "svc_weather"}, ids)
	assert.Equal(t, []string{"nope"}, unknown)
}

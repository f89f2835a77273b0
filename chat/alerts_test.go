package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nachoal/kaizen-chat/stream"
)

func TestAlertsNewestSupersedes(t *testing.T) {
	a := NewAlerts(0)
	assert.Equal(t, DefaultAlertDuration, a.Duration())

	first := a.Show(MsgEmptyQuestion)
	second := a.Show(MsgNoTools)

	assert.False(t, a.Expire(first), "stale timers must not hide newer alerts")
	alert, ok := a.Current()
	require.True(t, ok)
	assert.Equal(t, MsgNoTools, alert.Message)

	assert.True(t, a.Expire(second))
	_, ok = a.Current()
	assert.False(t, ok)
}

func TestAlertsExpireAfterDuration(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := NewAlerts(5 * time.Second)
	a.now = func() time.Time { return now }

	a.Show(MsgRequestFailed)
	now = now.Add(4 * time.Second)
	_, ok := a.Current()
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok = a.Current()
	assert.False(t, ok)
}

func TestAlertsDismiss(t *testing.T) {
	a := NewAlerts(time.Minute)
	a.Show(MsgRequestFailed)
	a.Dismiss()
	_, ok := a.Current()
	assert.False(t, ok)
}

func TestAccumulator(t *testing.T) {
	var acc Accumulator
	acc.AppendText("Hello")
	acc.AppendText(" world")
	acc.SetMetadata(stream.Metadata{Model: "a", TotalTokens: 4})
	acc.SetMetadata(stream.Metadata{Model: "b"})

	assert.Equal(t, "Hello world", acc.Text())
	require.NotNil(t, acc.Metadata())
	assert.Equal(t, stream.Metadata{Model: "b"}, *acc.Metadata())

	acc.Reset()
	assert.Empty(t, acc.Text())
	assert.Nil(t, acc.Metadata())
}

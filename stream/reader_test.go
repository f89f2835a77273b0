package stream

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedBody returns one scripted piece per Read call
type scriptedBody struct {
	pieces [][]byte
	err    error
}

func (b *scriptedBody) Read(p []byte) (int, error) {
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

func drain(t *testing.T, r *Reader) []string {
	t.Helper()
	var chunks []string
	for {
		chunk, err := r.Next()
		if err == io.EOF {
			return chunks
		}
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}
}

func TestReaderYieldsOneChunkPerRead(t *testing.T) {
	body := &scriptedBody{pieces: [][]byte{[]byte("Hello"), []byte(" world")}}

	chunks := drain(t, NewReader(body, FramingChunks))
	assert.Equal(t, []string{"Hello", " world"}, chunks)
}

func TestReaderCarriesSplitRunes(t *testing.T) {
	robot := []byte("🤖")
	body := &scriptedBody{pieces: [][]byte{
		append([]byte("hi "), robot[:2]...),
		robot[2:],
		[]byte("!"),
	}}

	chunks := drain(t, NewReader(body, FramingChunks))
	assert.Equal(t, []string{"hi ", "🤖", "!"}, chunks)
	assert.Equal(t, "hi 🤖!", strings.Join(chunks, ""))
}

func TestReaderFlushesPartialRuneAtEOF(t *testing.T) {
	robot := []byte("🤖")
	body := &scriptedBody{pieces: [][]byte{robot[:1]}}

	chunks := drain(t, NewReader(body, FramingChunks))
	assert.Equal(t, []string{string(robot[:1])}, chunks)
}

func TestReaderReportsBodyErrors(t *testing.T) {
	boom := errors.New("connection reset")
	body := &scriptedBody{pieces: [][]byte{[]byte("partial")}, err: boom}
	r := NewReader(body, FramingChunks)

	chunk, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "partial", chunk)

	_, err = r.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestReaderLineFraming(t *testing.T) {
	body := strings.NewReader("Hello\r\n\n world\n{\"isMetadata\":true,\"metadata\":{\"model\":\"m\"}}")

	chunks := drain(t, NewReader(body, FramingLines))
	assert.Equal(t, []string{"Hello", " world", `{"isMetadata":true,"metadata":{"model":"m"}}`}, chunks)
}

func TestFramesDecodesInOrder(t *testing.T) {
	body := &scriptedBody{pieces: [][]byte{
		[]byte("Hello"),
		[]byte(" world"),
		[]byte(`{"isMetadata":true,"metadata":{"model":"m","totalTokens":5}}`),
	}}

	var frames []Frame
	err := NewReader(body, FramingChunks).Frames(func(f Frame) error {
		frames = append(frames, f)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, TextFrame("Hello"), frames[0])
	assert.Equal(t, TextFrame(" world"), frames[1])
	assert.Equal(t, FrameMetadata, frames[2].Kind)
	assert.Equal(t, int64(5), frames[2].Metadata.TotalTokens)
}

func TestParseFraming(t *testing.T) {
	f, err := ParseFraming("")
	require.NoError(t, err)
	assert.Equal(t, FramingChunks, f)

	f, err = ParseFraming("LINES")
	require.NoError(t, err)
	assert.Equal(t, FramingLines, f)

	_, err = ParseFraming("sse")
	assert.Error(t, err)
}

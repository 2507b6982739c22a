package fabric

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teachware/siblings/internal/binario"
)

func encodeFrame(t *testing.T, tag string, payload []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := binario.NewWriter(&buf, binary.BigEndian)
	require.NoError(t, writeFrame(w, tag, payload))

	return buf.Bytes()
}

func TestFrame_RoundTrip(t *testing.T) {
	large := make([]byte, 1_000_000)
	_, err := rand.New(rand.NewSource(42)).Read(large)
	require.NoError(t, err)

	tests := map[string]struct {
		tag     string
		payload []byte
	}{
		"basic":         {tag: "news/v1", payload: []byte("hello")},
		"empty payload": {tag: "news/v1", payload: nil},
		"empty tag":     {tag: "", payload: []byte{0x00, 0xFF, 0x10}},
		"empty frame":   {tag: "", payload: nil},
		"long tag":      {tag: strings.Repeat("t", 10_000), payload: []byte("x")},
		"large payload": {tag: "bulk", payload: large},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			encoded := encodeFrame(t, tt.tag, tt.payload)
			r := binario.NewReader(bytes.NewReader(encoded), binary.BigEndian)

			fr, err := readFrame(r)
			require.NoError(t, err)
			assert.Equal(t, tt.tag, fr.tag)
			assert.Equal(t, string(tt.payload), string(fr.payload))

			// The stream must end exactly at the frame boundary.
			_, err = readFrame(r)
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestFrame_BackToBack(t *testing.T) {
	encoded := append(
		encodeFrame(t, "a/v1", []byte("first")),
		encodeFrame(t, "b/v2", []byte("second"))...,
	)

	r := binario.NewReader(bytes.NewReader(encoded), binary.BigEndian)

	fr, err := readFrame(r)
	require.NoError(t, err)
	assert.Equal(t, "a/v1", fr.tag)

	fr, err = readFrame(r)
	require.NoError(t, err)
	assert.Equal(t, "b/v2", fr.tag)
	assert.Equal(t, "second", string(fr.payload))
}

// Cutting the stream at any byte must produce either a clean io.EOF (only
// right where a length field would begin) or io.ErrUnexpectedEOF, never a
// panic or a garbage frame.
func TestFrame_Truncated(t *testing.T) {
	tag := "src"
	payload := []byte("payload")
	full := encodeFrame(t, tag, payload)

	// Positions where a length field starts: the very beginning and right
	// after the tag bytes.
	cleanAt := map[int]bool{
		0:            true,
		8 + len(tag): true,
	}

	for cut := 0; cut < len(full); cut++ {
		r := binario.NewReader(bytes.NewReader(full[:cut]), binary.BigEndian)

		_, err := readFrame(r)
		require.Error(t, err, "cut at %d", cut)

		if cleanAt[cut] {
			assert.ErrorIs(t, err, io.EOF, "cut at %d", cut)
		} else {
			assert.ErrorIs(t, err, io.ErrUnexpectedEOF, "cut at %d", cut)
		}
	}
}

func TestFrame_BadTagKeepsAlignment(t *testing.T) {
	var buf bytes.Buffer
	w := binario.NewWriter(&buf, binary.BigEndian)

	// A frame whose tag is not valid UTF-8, followed by a well-formed one.
	require.NoError(t, w.WriteUint64(2))
	require.NoError(t, w.WriteRaw([]byte{0xFF, 0xFE}))
	require.NoError(t, w.WriteUint64(3))
	require.NoError(t, w.WriteRaw([]byte("abc")))
	require.NoError(t, writeFrame(w, "ok/v1", []byte("fine")))

	r := binario.NewReader(bytes.NewReader(buf.Bytes()), binary.BigEndian)

	_, err := readFrame(r)
	require.ErrorIs(t, err, ErrBadTag)

	fr, err := readFrame(r)
	require.NoError(t, err)
	assert.Equal(t, "ok/v1", fr.tag)
	assert.Equal(t, "fine", string(fr.payload))
}

func TestFrame_LengthCap(t *testing.T) {
	var buf bytes.Buffer
	w := binario.NewWriter(&buf, binary.BigEndian)
	require.NoError(t, w.WriteUint64(maxTagLen+1))

	r := binario.NewReader(bytes.NewReader(buf.Bytes()), binary.BigEndian)

	_, err := readFrame(r)
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}

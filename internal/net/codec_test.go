package net

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFrameRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rt.IntRange(0, 1024).Draw(rt, "n")
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(rt.IntRange(0, 255).Draw(rt, "b"))
		}
		flags := Flags(rt.IntRange(0, 1).Draw(rt, "flags"))

		var buf bytes.Buffer
		require.NoError(t, WriteFrame(&buf, flags, payload))

		gotFlags, gotPayload, err := ReadFrame(&buf)
		require.NoError(t, err)
		assert.Equal(t, flags, gotFlags)
		assert.Equal(t, payload, gotPayload)
		assert.Equal(t, 0, buf.Len())
	})
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, FlagNone, make([]byte, MaxFramePayload+1))
	assert.Error(t, err)
}

func TestReadFrameRejectsTruncatedHeader(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x01, 0x00})
	_, _, err := ReadFrame(buf)
	assert.Error(t, err)
}

func TestReadFrameRejectsTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, FlagNone, []byte{1, 2, 3, 4, 5}))
	truncated := buf.Bytes()[:len(buf.Bytes())-2]
	_, _, err := ReadFrame(bytes.NewReader(truncated))
	assert.Error(t, err)
}

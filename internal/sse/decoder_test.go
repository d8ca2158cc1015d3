package sse

import (
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedReader returns the input in fixed-size pieces
type chunkedReader struct {
	data []byte
	size int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := c.size
	if n > len(c.data) {
		n = len(c.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

const sample = ": keep-alive\n" +
	"event: response.text.delta\n" +
	"data: {\"text\":\"Hello\"}\n" +
	"\n" +
	": keep-alive\n" +
	"event: response.text.delta\n" +
	"data: {\"text\":\" world\"}\n" +
	"\n" +
	"event: response\n" +
	"data: {\"message\":{}}\n"

func TestDecoder_BasicEvents(t *testing.T) {
	events, err := NewDecoder(strings.NewReader(sample)).All()
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, Event{Name: "response.text.delta", Payload: `{"text":"Hello"}`}, events[0])
	assert.Equal(t, Event{Name: "response.text.delta", Payload: `{"text":" world"}`}, events[1])
	assert.Equal(t, "response", events[2].Name)
}

func TestDecoder_TrailingEventWithoutBlankLine(t *testing.T) {
	events, err := NewDecoder(strings.NewReader("event: done\ndata: {}")).All()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, Event{Name: "done", Payload: "{}"}, events[0])
}

func TestDecoder_KeepAlivesNeverSurface(t *testing.T) {
	input := ": keep-alive\n\n: keep-alive\n\nevent: citation\ndata: {\"a\":1}\n\n: keep-alive\n"
	events, err := NewDecoder(strings.NewReader(input)).All()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotContains(t, events[0].Payload, "keep-alive")
}

func TestDecoder_MultilineData(t *testing.T) {
	input := "event: delta\ndata: first line\ndata:   second line  \n\n"
	events, err := NewDecoder(strings.NewReader(input)).All()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "first line\nsecond line", events[0].Payload)
}

func TestDecoder_EventNameOverwrite(t *testing.T) {
	input := "event: first\nevent: second\ndata: x\n\n"
	events, err := NewDecoder(strings.NewReader(input)).All()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "second", events[0].Name)
}

func TestDecoder_DataWithoutEventIsDropped(t *testing.T) {
	input := "data: orphan\n\nevent: real\ndata: kept\n\n"
	events, err := NewDecoder(strings.NewReader(input)).All()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "kept", events[0].Payload)
}

func TestDecoder_CRLF(t *testing.T) {
	input := "event: a\r\ndata: 1\r\n\r\nevent: b\r\ndata: 2\r\n\r\n"
	events, err := NewDecoder(strings.NewReader(input)).All()
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "1", events[0].Payload)
	assert.Equal(t, "b", events[1].Name)
}

func TestDecoder_ChunkingIndependence(t *testing.T) {
	want, err := NewDecoder(strings.NewReader(sample)).All()
	require.NoError(t, err)

	for size := 1; size <= len(sample); size++ {
		got, err := NewDecoder(&chunkedReader{data: []byte(sample), size: size}).All()
		require.NoError(t, err, "chunk size %d", size)
		assert.Equal(t, want, got, "chunk size %d", size)
	}

	got, err := NewDecoder(iotest.OneByteReader(strings.NewReader(sample))).All()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecoder_EOFIsSticky(t *testing.T) {
	d := NewDecoder(strings.NewReader("event: a\ndata: 1\n\n"))
	_, err := d.Next()
	require.NoError(t, err)

	_, err = d.Next()
	assert.ErrorIs(t, err, io.EOF)
	_, err = d.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoder_ReadError(t *testing.T) {
	d := NewDecoder(iotest.ErrReader(io.ErrUnexpectedEOF))
	_, err := d.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

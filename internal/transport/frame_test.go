package transport

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	body := []byte(`{"event":"draw-card","data":{"roomId":"ABC123"}}`)

	require.NoError(t, WriteFrame(&buf, FrameEvent, body))
	require.NoError(t, WriteFrame(&buf, FrameHeartbeat, nil))
	assert.Equal(t, 2*HeaderSize+len(body), buf.Len())

	typ, got, err := ReadFrame(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, FrameEvent, typ)
	assert.Equal(t, body, got)

	typ, got, err = ReadFrame(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, FrameHeartbeat, typ)
	assert.Empty(t, got)

	_, _, err = ReadFrame(&buf, 0)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameHeaderLayout(t *testing.T) {
	frame := BuildFrame(FrameEvent, []byte("abc"))
	assert.Equal(t, []byte{0, 0, 0, 3, 0, 10, 'a', 'b', 'c'}, frame)
}

func TestReadFrameTooLarge(t *testing.T) {
	frame := BuildFrame(FrameEvent, make([]byte, 32))
	_, _, err := ReadFrame(bytes.NewReader(frame), 16)
	assert.True(t, errors.Is(err, ErrFrameTooLarge))
}

func TestReadFrameTruncated(t *testing.T) {
	frame := BuildFrame(FrameEvent, []byte("hello"))
	_, _, err := ReadFrame(bytes.NewReader(frame[:HeaderSize+2]), 0)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestHeartbeatCheckerClosesIdleConnections(t *testing.T) {
	h := NewHub()
	idle := newConn("idle", KindWebTransport, 1, nil, nil)
	fresh := newConn("fresh", KindWebTransport, 1, nil, nil)
	ws := newConn("ws", KindWebSocket, 1, nil, nil)
	for _, c := range []*Conn{idle, fresh, ws} {
		h.Add(c)
	}

	now := time.Now()
	idle.lastActive.Store(now.Add(-2 * time.Minute).UnixNano())
	ws.lastActive.Store(now.Add(-2 * time.Minute).UnixNano())

	var timedOut []string
	checker := NewHeartbeatChecker(h, KindWebTransport, time.Minute, time.Second, func(c *Conn) {
		timedOut = append(timedOut, c.ID())
		c.Close()
	})

	assert.Equal(t, 1, checker.Check(now))
	assert.Equal(t, []string{"idle"}, timedOut)

	select {
	case <-idle.Done():
	default:
		t.Fatal("idle connection should be closed")
	}
}

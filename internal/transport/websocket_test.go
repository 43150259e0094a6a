package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sudooom.cardroom/internal/config"
	"sudooom.cardroom/internal/deck"
	"sudooom.cardroom/internal/gateway"
	"sudooom.cardroom/internal/room"
	"sudooom.cardroom/internal/snowflake"
	"sudooom.cardroom/internal/workerpool"
)

type stack struct {
	hub  *Hub
	gw   *gateway.Gateway
	pool *workerpool.Pool
	d    *Dispatcher
}

func newStack(t *testing.T, cfg ConnConfig) *stack {
	t.Helper()

	hub := NewHub()
	store := room.NewStore(room.WithShuffler(deck.NewSeededShuffler(1)))
	gw := gateway.New(store, hub, 32)
	pool := workerpool.New(4, 64, slog.Default())
	t.Cleanup(pool.Shutdown)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	d := NewDispatcher(context.Background(), hub, pool, gw, node, cfg)
	return &stack{hub: hub, gw: gw, pool: pool, d: d}
}

func nextEnvelope(t *testing.T, c *Conn) Envelope {
	t.Helper()
	select {
	case data := <-c.Outbound():
		env, err := Decode(data)
		require.NoError(t, err)
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Envelope{}
	}
}

func TestDispatcherRejectsBadMessages(t *testing.T) {
	s := newStack(t, ConnConfig{SendQueue: 16})
	c := s.d.Register(KindWebSocket, nil)

	s.d.Dispatch(c, []byte(`not json`))
	env := nextEnvelope(t, c)
	assert.Equal(t, gateway.EventError, env.Event)

	s.d.Dispatch(c, []byte(`{"event":"fly-away"}`))
	env = nextEnvelope(t, c)
	assert.Equal(t, gateway.EventError, env.Event)

	s.d.Dispatch(c, []byte(`{"event":"join-room","data":"oops"}`))
	env = nextEnvelope(t, c)
	assert.Equal(t, gateway.EventJoinError, env.Event)

	var payload gateway.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "INVALID_INPUT", payload.Code)
}

func TestDispatcherRateLimit(t *testing.T) {
	s := newStack(t, ConnConfig{SendQueue: 16, RateLimit: 1, RateBurst: 1})
	c := s.d.Register(KindWebSocket, nil)

	s.d.Dispatch(c, []byte(`{"event":"get-room-info","data":{"roomId":"NOPE00"}}`))
	s.d.Dispatch(c, []byte(`{"event":"get-room-info","data":{"roomId":"NOPE00"}}`))

	got := []string{nextEnvelope(t, c).Event, nextEnvelope(t, c).Event}
	assert.ElementsMatch(t, []string{gateway.EventRoomInfoError, gateway.EventRoomInfoError}, got)
}

func TestDispatcherDisconnectLeavesRoom(t *testing.T) {
	s := newStack(t, ConnConfig{SendQueue: 16})
	host := s.d.Register(KindWebSocket, nil)
	guest := s.d.Register(KindWebSocket, nil)

	s.d.Dispatch(host, []byte(`{"event":"create-room","data":{"username":"Anna"}}`))
	created := nextEnvelope(t, host)
	require.Equal(t, gateway.EventRoomCreated, created.Event)

	var entered struct {
		RoomID string `json:"roomId"`
	}
	require.NoError(t, json.Unmarshal(created.Data, &entered))

	s.d.Dispatch(guest, []byte(`{"event":"join-room","data":{"roomId":"`+strings.ToLower(entered.RoomID)+`","username":"Luca"}}`))
	assert.Equal(t, gateway.EventRoomJoined, nextEnvelope(t, guest).Event)
	assert.Equal(t, gateway.EventUserJoined, nextEnvelope(t, host).Event)

	s.d.Disconnected(host)
	assert.Equal(t, gateway.EventUserLeft, nextEnvelope(t, guest).Event)
	assert.Equal(t, gateway.EventRoomUpdated, nextEnvelope(t, guest).Event)

	require.Eventually(t, func() bool { return s.hub.Get(host.ID()) == nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, s.hub.GroupSize(entered.RoomID))
	assert.Equal(t, 1, s.gw.SessionCount())
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := Encode(event, data)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, raw))
}

func receive(t *testing.T, ws *websocket.Conn) (string, map[string]any) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := ws.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg.Event, msg.Data
}

func TestWebSocketEndToEnd(t *testing.T) {
	s := newStack(t, ConnConfig{SendQueue: 16})
	handler := NewWebSocketHandler(s.d, config.ServerConfig{
		AllowOrigins: []string{"*"},
		ReadLimit:    4096,
		PongWait:     time.Minute,
		WriteWait:    time.Second,
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	anna := dial(t, url)
	send(t, anna, gateway.EventCreateRoom, map[string]string{"username": "Anna", "passcode": "1234"})
	event, data := receive(t, anna)
	require.Equal(t, gateway.EventRoomCreated, event)
	roomID := data["roomId"].(string)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, roomID)

	luca := dial(t, url)
	send(t, luca, gateway.EventJoinRoom, map[string]string{"roomId": roomID, "username": "Luca", "passcode": "wrong"})
	event, data = receive(t, luca)
	assert.Equal(t, gateway.EventJoinError, event)
	assert.Equal(t, "UNAUTHORIZED", data["code"])

	send(t, luca, gateway.EventJoinRoom, map[string]string{"roomId": roomID, "username": "Luca", "passcode": "1234"})
	event, _ = receive(t, luca)
	assert.Equal(t, gateway.EventRoomJoined, event)
	event, _ = receive(t, anna)
	assert.Equal(t, gateway.EventUserJoined, event)

	send(t, luca, gateway.EventDrawCard, map[string]string{"roomId": roomID})
	for _, ws := range []*websocket.Conn{anna, luca} {
		event, data = receive(t, ws)
		assert.Equal(t, gateway.EventCardDrawn, event)
		assert.Equal(t, float64(deck.Size-1), data["deckSize"])
		assert.Equal(t, "Luca", data["drawnBy"])
	}

	send(t, luca, gateway.EventReshuffleDeck, map[string]string{"roomId": roomID})
	event, data = receive(t, luca)
	assert.Equal(t, gateway.EventReshuffleError, event)
	assert.Equal(t, "UNAUTHORIZED", data["code"])

	require.NoError(t, anna.Close())
	event, data = receive(t, luca)
	assert.Equal(t, gateway.EventUserLeft, event)
	event, data = receive(t, luca)
	assert.Equal(t, gateway.EventRoomUpdated, event)
	assert.NotEmpty(t, data["hostId"])

	send(t, luca, gateway.EventReshuffleDeck, map[string]string{"roomId": roomID})
	event, data = receive(t, luca)
	assert.Equal(t, gateway.EventDeckReshuffled, event)
	assert.Equal(t, float64(deck.Size), data["deckSize"])
}

func TestOriginAllowed(t *testing.T) {
	assert.True(t, OriginAllowed([]string{"*"}, "https://evil.example"))
	assert.True(t, OriginAllowed([]string{"https://cards.example"}, "https://cards.example"))
	assert.False(t, OriginAllowed([]string{"https://cards.example"}, "https://evil.example"))
	assert.True(t, OriginAllowed(nil, ""))
}

package transport

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addConn(h *Hub, id string, queue int) *Conn {
	c := newConn(id, KindWebSocket, queue, nil, nil)
	h.Add(c)
	return c
}

func drain(c *Conn) []Envelope {
	var out []Envelope
	for {
		select {
		case data := <-c.Outbound():
			env, err := Decode(data)
			if err != nil {
				panic(err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func events(envs []Envelope) []string {
	names := make([]string, 0, len(envs))
	for _, e := range envs {
		names = append(names, e.Event)
	}
	return names
}

func TestHubSendTo(t *testing.T) {
	h := NewHub()
	a := addConn(h, "a", 8)
	assert.WithinDuration(t, time.Now(), a.CreateTime(), time.Second)

	h.SendTo("a", "room-info", map[string]any{"deckSize": 40})
	h.SendTo("missing", "room-info", nil)

	got := drain(a)
	require.Len(t, got, 1)
	assert.Equal(t, "room-info", got[0].Event)

	var data map[string]int
	require.NoError(t, json.Unmarshal(got[0].Data, &data))
	assert.Equal(t, 40, data["deckSize"])
}

func TestHubBroadcastGroups(t *testing.T) {
	h := NewHub()
	a := addConn(h, "a", 8)
	b := addConn(h, "b", 8)
	c := addConn(h, "c", 8)

	h.JoinGroup("a", "R1")
	h.JoinGroup("b", "R1")
	h.JoinGroup("c", "R2")
	assert.Equal(t, 2, h.GroupSize("R1"))

	h.Broadcast("R1", "card-drawn", nil)
	h.BroadcastExcept("R1", "a", "user-joined", nil)

	assert.Equal(t, []string{"card-drawn"}, events(drain(a)))
	assert.Equal(t, []string{"card-drawn", "user-joined"}, events(drain(b)))
	assert.Empty(t, drain(c))

	h.LeaveGroup("b", "R1")
	h.Broadcast("R1", "deck-reshuffled", nil)
	assert.Equal(t, []string{"deck-reshuffled"}, events(drain(a)))
	assert.Empty(t, drain(b))
}

func TestHubRemoveLeavesGroups(t *testing.T) {
	h := NewHub()
	addConn(h, "a", 8)
	addConn(h, "b", 8)
	h.JoinGroup("a", "R1")
	h.JoinGroup("b", "R1")

	h.Remove("a")
	h.Remove("a")

	assert.Equal(t, 1, h.Count())
	assert.Equal(t, 1, h.GroupSize("R1"))
	assert.Nil(t, h.Get("a"))

	h.Remove("b")
	assert.Equal(t, 0, h.GroupSize("R1"))

	// 未注册的连接不能加入广播组
	h.JoinGroup("ghost", "R1")
	assert.Equal(t, 0, h.GroupSize("R1"))
}

func TestHubClosesSlowConnection(t *testing.T) {
	h := NewHub()
	slow := addConn(h, "slow", 1)
	fast := addConn(h, "fast", 8)
	h.JoinGroup("slow", "R1")
	h.JoinGroup("fast", "R1")

	h.Broadcast("R1", "card-drawn", nil)
	h.Broadcast("R1", "card-drawn", nil)

	require.Eventually(t, func() bool {
		select {
		case <-slow.Done():
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	assert.Len(t, drain(fast), 2)
	assert.False(t, slow.Enqueue([]byte("x")))
}

func TestEncodeEnvelope(t *testing.T) {
	data, err := Encode("room-updated", map[string]any{"hostId": "h"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"room-updated","data":{"hostId":"h"}}`, string(data))

	env, err := Decode([]byte(`{"event":"draw-card","data":{"roomId":"ABC123"}}`))
	require.NoError(t, err)
	assert.Equal(t, "draw-card", env.Event)
	assert.JSONEq(t, `{"roomId":"ABC123"}`, string(env.Data))

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

package nats

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sudooom.cardroom/internal/config"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject, data})
	return nil
}

func TestBuildRoomSubject(t *testing.T) {
	assert.Equal(t, "cardroom.room.ABC123.card-drawn", BuildRoomSubject("cardroom", "ABC123", "card-drawn"))
	assert.Equal(t, "cardroom.room.ABC123.>", BuildRoomWildcard("cardroom", "ABC123"))
	assert.Equal(t, "cardroom.room.>", BuildRoomWildcard("cardroom", ""))
}

func TestMirrorPublishesRoomEvent(t *testing.T) {
	pub := &fakePublisher{}
	m := NewMirror(pub, "")
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	m.MirrorDelta("ABC123", "deck-reshuffled", map[string]int{"deckSize": 40})

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "cardroom.room.ABC123.deck-reshuffled", pub.msgs[0].subject)

	var ev struct {
		RoomID    string         `json:"roomId"`
		Event     string         `json:"event"`
		Data      map[string]int `json:"data"`
		Timestamp time.Time      `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(pub.msgs[0].data, &ev))
	assert.Equal(t, "ABC123", ev.RoomID)
	assert.Equal(t, "deck-reshuffled", ev.Event)
	assert.Equal(t, 40, ev.Data["deckSize"])
	assert.True(t, fixed.Equal(ev.Timestamp))
}

func TestMirrorSwallowsErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats: connection closed")}
	m := NewMirror(pub, "cards")

	assert.NotPanics(t, func() {
		m.MirrorDelta("ABC123", "card-drawn", nil)
		m.MirrorDelta("ABC123", "card-drawn", func() {})
	})
	assert.Empty(t, pub.msgs)
}

// TestMirrorIntegration 需要本地 NATS
func TestMirrorIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") == "" {
		t.Skip("跳过集成测试，设置 INTEGRATION_TEST=1 来运行")
	}

	client, err := NewClient(config.NATSConfig{
		URL:           "nats://127.0.0.1:4222",
		MaxReconnects: 1,
		ReconnectWait: time.Second,
	})
	require.NoError(t, err)
	defer client.Close()
	require.True(t, client.IsConnected())

	got := make(chan string, 1)
	sub, err := client.Subscribe(BuildRoomWildcard("it", "ROOM01"), func(subject string, _ []byte) {
		got <- subject
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	NewMirror(client, "it").MirrorDelta("ROOM01", "user-joined", map[string]string{"username": "Anna"})

	select {
	case subject := <-got:
		assert.Equal(t, "it.room.ROOM01.user-joined", subject)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

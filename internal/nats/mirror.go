package nats

import (
	"encoding/json"
	"log/slog"
	"time"
)

// Publisher 由 Client 实现，测试中可替换
type Publisher interface {
	Publish(subject string, data []byte) error
}

// RoomEvent 镜像到 NATS 的房间事件
type RoomEvent struct {
	RoomID    string    `json:"roomId"`
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Mirror 把房间广播事件发布到 NATS，实现 gateway.DeltaSink
// 在房间锁内被调用，发布失败只记录日志
type Mirror struct {
	pub    Publisher
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

func NewMirror(pub Publisher, prefix string) *Mirror {
	if prefix == "" {
		prefix = "cardroom"
	}
	return &Mirror{
		pub:    pub,
		prefix: prefix,
		now:    time.Now,
		logger: slog.Default().With("component", "NATSMirror"),
	}
}

func (m *Mirror) MirrorDelta(roomID, event string, payload any) {
	data, err := json.Marshal(RoomEvent{
		RoomID:    roomID,
		Event:     event,
		Data:      payload,
		Timestamp: m.now(),
	})
	if err != nil {
		m.logger.Error("Failed to marshal room event", "roomId", roomID, "event", event, "error", err)
		return
	}

	subject := BuildRoomSubject(m.prefix, roomID, event)
	if err := m.pub.Publish(subject, data); err != nil {
		m.logger.Warn("Failed to publish room event", "subject", subject, "error", err)
	}
}

package redis

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"sudooom.cardroom/internal/room"
)

// RoomStore 房间摘要存储，由 Client 实现
type RoomStore interface {
	SaveRoom(ctx context.Context, stats room.Stats, ttl time.Duration) error
	DeleteRoom(ctx context.Context, roomID string) error
}

type statsOp struct {
	stats  room.Stats
	remove bool
}

// StatsMirror 异步把房间摘要写入 Redis，实现 gateway.StatsSink
// 更新在房间操作路径上产生，只做非阻塞入队，队列满时丢弃
type StatsMirror struct {
	store   RoomStore
	ttl     time.Duration
	timeout time.Duration
	queue   chan statsOp
	dropped atomic.Int64
	logger  *slog.Logger
}

func NewStatsMirror(store RoomStore, ttl time.Duration, queueSize int) *StatsMirror {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &StatsMirror{
		store:   store,
		ttl:     ttl,
		timeout: 2 * time.Second,
		queue:   make(chan statsOp, queueSize),
		logger:  slog.Default().With("component", "StatsMirror"),
	}
}

func (m *StatsMirror) UpdateRoom(stats room.Stats) {
	m.enqueue(statsOp{stats: stats})
}

func (m *StatsMirror) RemoveRoom(roomID string) {
	m.enqueue(statsOp{stats: room.Stats{ID: roomID}, remove: true})
}

// Dropped 因队列满被丢弃的更新数
func (m *StatsMirror) Dropped() int64 {
	return m.dropped.Load()
}

func (m *StatsMirror) enqueue(op statsOp) {
	select {
	case m.queue <- op:
	default:
		if m.dropped.Add(1)%100 == 1 {
			m.logger.Warn("Stats queue full, dropping update", "roomId", op.stats.ID, "dropped", m.dropped.Load())
		}
	}
}

// Run 消费队列直到 ctx 取消，退出前写完已入队的更新
func (m *StatsMirror) Run(ctx context.Context) {
	for {
		select {
		case op := <-m.queue:
			m.apply(op)
		case <-ctx.Done():
			for {
				select {
				case op := <-m.queue:
					m.apply(op)
				default:
					return
				}
			}
		}
	}
}

func (m *StatsMirror) apply(op statsOp) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var err error
	if op.remove {
		err = m.store.DeleteRoom(ctx, op.stats.ID)
	} else {
		err = m.store.SaveRoom(ctx, op.stats, m.ttl)
	}
	if err != nil {
		m.logger.Warn("Failed to write room stats", "roomId", op.stats.ID, "remove", op.remove, "error", err)
	}
}

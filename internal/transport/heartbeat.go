package transport

import (
	"context"
	"log/slog"
	"time"
)

// HeartbeatChecker 心跳超时检测器
// 只检查指定类型的连接，WebSocket 由 ping/pong 读超时负责
type HeartbeatChecker struct {
	hub           *Hub
	kind          string
	timeout       time.Duration
	checkInterval time.Duration
	logger        *slog.Logger
	onTimeout     func(c *Conn)
}

// NewHeartbeatChecker 创建心跳检测器
func NewHeartbeatChecker(hub *Hub, kind string, timeout, checkInterval time.Duration, onTimeout func(c *Conn)) *HeartbeatChecker {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if checkInterval <= 0 {
		checkInterval = 30 * time.Second
	}

	return &HeartbeatChecker{
		hub:           hub,
		kind:          kind,
		timeout:       timeout,
		checkInterval: checkInterval,
		logger:        slog.Default().With("component", "HeartbeatChecker"),
		onTimeout:     onTimeout,
	}
}

// Start 启动心跳检测（阻塞，应在 goroutine 中调用）
func (h *HeartbeatChecker) Start(ctx context.Context) {
	ticker := time.NewTicker(h.checkInterval)
	defer ticker.Stop()

	h.logger.Info("Heartbeat checker started", "kind", h.kind, "timeout", h.timeout, "check_interval", h.checkInterval)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Heartbeat checker stopped")
			return
		case <-ticker.C:
			h.Check(time.Now())
		}
	}
}

// Check 关闭超时连接，返回关闭数量
func (h *HeartbeatChecker) Check(now time.Time) int {
	timeoutCount := 0
	for _, c := range h.hub.GetAllConnections() {
		if c.Kind() != h.kind {
			continue
		}
		if now.Sub(c.LastActiveTime()) <= h.timeout {
			continue
		}

		timeoutCount++
		h.logger.Debug("Connection heartbeat timeout", "conn_id", c.ID(), "last_active", c.LastActiveTime())
		if h.onTimeout != nil {
			h.onTimeout(c)
		} else {
			c.Close()
		}
	}

	if timeoutCount > 0 {
		h.logger.Info("Heartbeat check completed", "timeout", timeoutCount)
	}
	return timeoutCount
}

package health

import (
	"context"
	"time"
)

const (
	StateDisabled     = "disabled"
	StateConnected    = "connected"
	StateDisconnected = "disconnected"
)

// Status 健康状态
type Status struct {
	Service     string `json:"service"`
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	Rooms       int    `json:"rooms"`
	Connections int    `json:"connections"`
	Sessions    int    `json:"sessions"`
	NATS        string `json:"nats"`
	Redis       string `json:"redis"`
	Database    string `json:"database"`
}

// Ready 所有已启用的依赖都可用
func (s Status) Ready() bool {
	for _, state := range []string{s.NATS, s.Redis, s.Database} {
		if state == StateDisconnected {
			return false
		}
	}
	return true
}

// Counter 计数器接口
type Counter interface {
	Count() int
}

// CounterFunc 把函数适配为 Counter
type CounterFunc func() int

func (f CounterFunc) Count() int { return f() }

// Pinger Redis / PostgreSQL
type Pinger interface {
	Ping(ctx context.Context) error
}

// Connectivity NATS
type Connectivity interface {
	IsConnected() bool
}

// Checker 健康检查器，未配置的依赖报告为 disabled
type Checker struct {
	service  string
	started  time.Time
	rooms    Counter
	conns    Counter
	sessions Counter
	nats     Connectivity
	redis    Pinger
	database Pinger
	timeout  time.Duration
}

// NewChecker 创建健康检查器
func NewChecker(service string, rooms, conns, sessions Counter) *Checker {
	return &Checker{
		service:  service,
		started:  time.Now(),
		rooms:    rooms,
		conns:    conns,
		sessions: sessions,
		timeout:  2 * time.Second,
	}
}

func (h *Checker) WithNATS(c Connectivity) *Checker {
	h.nats = c
	return h
}

func (h *Checker) WithRedis(p Pinger) *Checker {
	h.redis = p
	return h
}

func (h *Checker) WithDatabase(p Pinger) *Checker {
	h.database = p
	return h
}

// Check 执行健康检查
func (h *Checker) Check(ctx context.Context) Status {
	status := Status{
		Service:  h.service,
		Uptime:   time.Since(h.started).Truncate(time.Second).String(),
		NATS:     StateDisabled,
		Redis:    StateDisabled,
		Database: StateDisabled,
	}

	if h.nats != nil {
		status.NATS = state(h.nats.IsConnected())
	}
	if h.redis != nil {
		status.Redis = h.ping(ctx, h.redis)
	}
	if h.database != nil {
		status.Database = h.ping(ctx, h.database)
	}

	if h.rooms != nil {
		status.Rooms = h.rooms.Count()
	}
	if h.conns != nil {
		status.Connections = h.conns.Count()
	}
	if h.sessions != nil {
		status.Sessions = h.sessions.Count()
	}

	status.Status = "ok"
	if !status.Ready() {
		status.Status = "degraded"
	}
	return status
}

func (h *Checker) ping(ctx context.Context, p Pinger) string {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return state(p.Ping(ctx) == nil)
}

func state(ok bool) string {
	if ok {
		return StateConnected
	}
	return StateDisconnected
}

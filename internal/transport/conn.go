package transport

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	KindWebSocket    = "websocket"
	KindWebTransport = "webtransport"
)

// Conn 一个客户端连接
// 出站数据先进入 send 队列，由各传输实现的写循环发出
type Conn struct {
	id         string
	kind       string
	send       chan []byte
	done       chan struct{}
	closeOnce  sync.Once
	closeFn    func()
	limiter    *rate.Limiter
	createTime time.Time
	lastActive atomic.Int64
}

func newConn(id, kind string, queueSize int, limiter *rate.Limiter, closeFn func()) *Conn {
	c := &Conn{
		id:         id,
		kind:       kind,
		send:       make(chan []byte, queueSize),
		done:       make(chan struct{}),
		closeFn:    closeFn,
		limiter:    limiter,
		createTime: time.Now(),
	}
	c.Touch()
	return c
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) Kind() string {
	return c.kind
}

// Enqueue 非阻塞写入发送队列，队列满或连接已关闭时返回 false
func (c *Conn) Enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Outbound 发送队列，写循环从这里读取
func (c *Conn) Outbound() <-chan []byte {
	return c.send
}

// Done 连接关闭后可读
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close 关闭连接，可重复调用
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.closeFn != nil {
			c.closeFn()
		}
	})
}

// Allow 入站限流
func (c *Conn) Allow() bool {
	if c.limiter == nil {
		return true
	}
	return c.limiter.Allow()
}

func (c *Conn) Touch() {
	c.lastActive.Store(time.Now().UnixNano())
}

func (c *Conn) LastActiveTime() time.Time {
	return time.Unix(0, c.lastActive.Load())
}

func (c *Conn) CreateTime() time.Time {
	return c.createTime
}

package transport

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"sudooom.cardroom/internal/apperr"
	"sudooom.cardroom/internal/gateway"
	"sudooom.cardroom/internal/snowflake"
	"sudooom.cardroom/internal/workerpool"
)

var (
	ErrRateLimited = apperr.New(apperr.KindInvalidInput, "RATE_LIMITED", "Too many requests")
	ErrMalformed   = apperr.New(apperr.KindInvalidInput, "MALFORMED_MESSAGE", "Malformed message")
	ErrServerBusy  = apperr.New(apperr.KindInternal, "SERVER_BUSY", "Server busy")
)

// Handler 命令处理方，由 gateway.Gateway 实现
type Handler interface {
	Handle(ctx context.Context, identity string, cmd gateway.Command) gateway.Result
	Fail(identity, event string, err error, out *gateway.Result)
}

// ConnConfig 连接级参数
type ConnConfig struct {
	SendQueue int
	RateLimit float64
	RateBurst int
}

// Dispatcher 把各传输层收到的消息解码后投递到 worker pool
// 同一连接的消息按连接 ID 分片，保证串行处理
type Dispatcher struct {
	ctx     context.Context
	hub     *Hub
	pool    *workerpool.Pool
	handler Handler
	ids     *snowflake.Node
	cfg     ConnConfig
	logger  *slog.Logger
}

func NewDispatcher(ctx context.Context, hub *Hub, pool *workerpool.Pool, handler Handler, ids *snowflake.Node, cfg ConnConfig) *Dispatcher {
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = 256
	}
	return &Dispatcher{
		ctx:     ctx,
		hub:     hub,
		pool:    pool,
		handler: handler,
		ids:     ids,
		cfg:     cfg,
		logger:  slog.Default().With("component", "Dispatcher"),
	}
}

func (d *Dispatcher) Hub() *Hub {
	return d.hub
}

// Register 创建连接并加入 Hub
func (d *Dispatcher) Register(kind string, closeFn func()) *Conn {
	var limiter *rate.Limiter
	if d.cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(d.cfg.RateLimit), d.cfg.RateBurst)
	}

	c := newConn(d.ids.Generate().Base36(), kind, d.cfg.SendQueue, limiter, closeFn)
	d.hub.Add(c)

	d.logger.Debug("Connection registered", "conn_id", c.ID(), "kind", kind)
	return c
}

// Dispatch 处理一条入站消息
func (d *Dispatcher) Dispatch(c *Conn, raw []byte) {
	c.Touch()

	env, err := Decode(raw)
	if err != nil || env.Event == "" {
		d.reject(c, gateway.EventError, ErrMalformed)
		return
	}
	errorEvent := gateway.ErrorEventFor(env.Event)

	if !c.Allow() {
		d.reject(c, errorEvent, ErrRateLimited)
		return
	}

	cmd, err := gateway.DecodeCommand(env.Event, env.Data)
	if err != nil {
		d.reject(c, errorEvent, err)
		return
	}

	ok := d.pool.TrySubmit(c.ID(), func() {
		d.handler.Handle(d.ctx, c.ID(), cmd)
	})
	if !ok {
		d.logger.Warn("Worker queue full, dropping command", "conn_id", c.ID(), "event", env.Event)
		d.reject(c, errorEvent, ErrServerBusy)
	}
}

// Disconnected 连接断开后调用，可重复调用
// 断开命令排在该连接已提交的命令之后执行
func (d *Dispatcher) Disconnected(c *Conn) {
	c.Close()

	connID := c.ID()
	cleanup := func() {
		d.handler.Handle(d.ctx, connID, gateway.Disconnect{})
		d.hub.Remove(connID)
	}
	if !d.pool.Submit(connID, cleanup) {
		cleanup()
	}
	d.logger.Debug("Connection closed",
		"conn_id", connID,
		"kind", c.Kind(),
		"duration", time.Since(c.CreateTime()))
}

func (d *Dispatcher) reject(c *Conn, event string, err error) {
	d.handler.Fail(c.ID(), event, err, &gateway.Result{})
}

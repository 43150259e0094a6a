package transport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"sudooom.cardroom/internal/config"
)

// WebSocketHandler 处理 /ws 升级，每个连接一对读写 goroutine
type WebSocketHandler struct {
	d        *Dispatcher
	cfg      config.ServerConfig
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewWebSocketHandler(d *Dispatcher, cfg config.ServerConfig) *WebSocketHandler {
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.PongWait {
		cfg.PingInterval = cfg.PongWait * 9 / 10
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}

	h := &WebSocketHandler{
		d:      d,
		cfg:    cfg,
		logger: slog.Default().With("component", "WebSocket"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return OriginAllowed(cfg.AllowOrigins, r.Header.Get("Origin"))
		},
	}
	return h
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := h.d.Register(KindWebSocket, func() {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(h.cfg.WriteWait))
		ws.Close()
	})
	h.logger.Debug("WebSocket connected", "conn_id", c.ID(), "remote", r.RemoteAddr)

	go h.writePump(ws, c)
	go h.readPump(ws, c)
}

func (h *WebSocketHandler) readPump(ws *websocket.Conn, c *Conn) {
	defer h.d.Disconnected(c)

	if h.cfg.ReadLimit > 0 {
		ws.SetReadLimit(h.cfg.ReadLimit)
	}
	_ = ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		c.Touch()
		return ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		messageType, message, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.logger.Debug("WebSocket read error", "conn_id", c.ID(), "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		h.d.Dispatch(c, message)
	}
}

func (h *WebSocketHandler) writePump(ws *websocket.Conn, c *Conn) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.Outbound():
			_ = ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Debug("WebSocket write failed", "conn_id", c.ID(), "error", err)
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.Done():
			return
		}
	}
}

// OriginAllowed 判断 Origin 是否在白名单中，"*" 放行所有来源，未带 Origin 的请求放行
func OriginAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return true
	}
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

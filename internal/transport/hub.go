package transport

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Hub 管理所有连接和房间广播组，实现 gateway.Transport
// 所有投递都是非阻塞的：发送队列满的连接会被关闭
type Hub struct {
	mu         sync.RWMutex
	conns      map[string]*Conn
	groups     map[string]map[string]*Conn   // roomID -> connID -> Conn
	membership map[string]map[string]struct{} // connID -> roomIDs
	logger     *slog.Logger
}

func NewHub() *Hub {
	return &Hub{
		conns:      make(map[string]*Conn),
		groups:     make(map[string]map[string]*Conn),
		membership: make(map[string]map[string]struct{}),
		logger:     slog.Default().With("component", "Hub"),
	}
}

func (h *Hub) Add(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID()] = c
}

// Remove 移除连接并退出它所在的所有广播组
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; !ok {
		return
	}
	delete(h.conns, connID)

	for roomID := range h.membership[connID] {
		h.leaveLocked(connID, roomID)
	}
	delete(h.membership, connID)
}

func (h *Hub) Get(connID string) *Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns[connID]
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// GroupSize 广播组内的连接数
func (h *Hub) GroupSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[roomID])
}

// GetAllConnections 返回所有连接（用于空闲检测）
func (h *Hub) GetAllConnections() []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	return conns
}

func (h *Hub) JoinGroup(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return
	}
	if h.groups[roomID] == nil {
		h.groups[roomID] = make(map[string]*Conn)
	}
	h.groups[roomID][connID] = c

	if h.membership[connID] == nil {
		h.membership[connID] = make(map[string]struct{})
	}
	h.membership[connID][roomID] = struct{}{}
}

func (h *Hub) LeaveGroup(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveLocked(connID, roomID)
	if rooms, ok := h.membership[connID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(h.membership, connID)
		}
	}
}

func (h *Hub) leaveLocked(connID, roomID string) {
	group, ok := h.groups[roomID]
	if !ok {
		return
	}
	delete(group, connID)
	if len(group) == 0 {
		delete(h.groups, roomID)
	}
}

func (h *Hub) SendTo(connID, event string, payload any) {
	data, ok := h.encode(event, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	c := h.conns[connID]
	h.mu.RUnlock()

	if c != nil {
		h.deliver(c, data)
	}
}

func (h *Hub) Broadcast(roomID, event string, payload any) {
	h.BroadcastExcept(roomID, "", event, payload)
}

func (h *Hub) BroadcastExcept(roomID, exclude, event string, payload any) {
	data, ok := h.encode(event, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, c := range h.groups[roomID] {
		if id == exclude {
			continue
		}
		h.deliver(c, data)
	}
}

func (h *Hub) deliver(c *Conn, data []byte) {
	if c.Enqueue(data) {
		return
	}
	select {
	case <-c.Done():
	default:
		h.logger.Warn("Send queue full, closing slow connection", "conn_id", c.ID(), "kind", c.Kind())
		go c.Close()
	}
}

func (h *Hub) encode(event string, payload any) ([]byte, bool) {
	data, err := Encode(event, payload)
	if err != nil {
		h.logger.Error("Failed to encode event", "event", event, "error", err)
		return nil, false
	}
	return data, true
}

// Envelope 线上消息格式 {"event": "...", "data": {...}}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Encode 编码出站消息
func Encode(event string, payload any) ([]byte, error) {
	return json.Marshal(outbound{Event: event, Data: payload})
}

// Decode 解码入站消息
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(raw, &env)
	return env, err
}

package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"sudooom.cardroom/internal/apperr"
	"sudooom.cardroom/internal/room"
)

// Audience 消息的接收范围
type Audience int

const (
	AudienceSender Audience = iota
	AudienceRoom
	AudienceRoomExceptSender
)

func (a Audience) String() string {
	switch a {
	case AudienceSender:
		return "sender"
	case AudienceRoom:
		return "room"
	case AudienceRoomExceptSender:
		return "room-except-sender"
	default:
		return "unknown"
	}
}

// Delta 一条带地址的出站消息
type Delta struct {
	Audience Audience
	RoomID   string
	Event    string
	Payload  any
}

// Result 命令处理结果，Deltas 已经按顺序投递
type Result struct {
	Deltas []Delta
	Err    error
}

// Transport 传输层需要提供的能力
// 实现必须是非阻塞的：Gateway 在房间锁内调用它
type Transport interface {
	SendTo(identity, event string, payload any)
	Broadcast(roomID, event string, payload any)
	BroadcastExcept(roomID, exclude, event string, payload any)
	JoinGroup(identity, roomID string)
	LeaveGroup(identity, roomID string)
}

// DeltaSink 接收房间范围的消息副本（如 NATS 镜像），同样在房间锁内调用
type DeltaSink interface {
	MirrorDelta(roomID, event string, payload any)
}

// StatsSink 接收变更后的房间摘要（如 Redis），调用不能阻塞
type StatsSink interface {
	UpdateRoom(stats room.Stats)
	RemoveRoom(roomID string)
}

// Gateway 会话网关
// 把连接事件转换为房间操作，并把结果投递给对应的接收方
type Gateway struct {
	store       *room.Store
	transport   Transport
	maxUsername int

	mirror DeltaSink
	stats  StatsSink

	mu       sync.Mutex
	sessions map[string]string // identity -> roomID

	logger *slog.Logger
}

// New 创建会话网关
func New(store *room.Store, transport Transport, maxUsername int) *Gateway {
	return &Gateway{
		store:       store,
		transport:   transport,
		maxUsername: maxUsername,
		sessions:    make(map[string]string),
		logger:      slog.Default().With("component", "Gateway"),
	}
}

// SetMirror 设置消息镜像，需在处理请求之前调用
func (g *Gateway) SetMirror(m DeltaSink) {
	g.mirror = m
}

// SetStats 设置房间摘要接收方，需在处理请求之前调用
func (g *Gateway) SetStats(s StatsSink) {
	g.stats = s
}

// SessionCount 当前在房间内的连接数
func (g *Gateway) SessionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

// RoomOf 返回连接当前所在的房间
func (g *Gateway) RoomOf(identity string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.sessions[identity]
	return id, ok
}

// Handle 处理一条命令
// 同一个连接的命令必须串行提交
func (g *Gateway) Handle(ctx context.Context, identity string, cmd Command) Result {
	var out Result

	var err error
	switch c := cmd.(type) {
	case CreateRoom:
		err = g.createRoom(identity, c, &out)
	case JoinRoom:
		err = g.joinRoom(identity, c, &out)
	case ResumeSession:
		err = g.resumeSession(identity, c, &out)
	case DrawCard:
		err = g.drawCard(identity, c, &out)
	case ReshuffleDeck:
		err = g.reshuffleDeck(identity, c, &out)
	case GetRoomInfo:
		err = g.getRoomInfo(identity, c, &out)
	case Disconnect:
		g.disconnect(identity, &out)
	default:
		err = ErrUnknownEvent
	}

	if err != nil {
		event := EventError
		if cmd != nil {
			event = cmd.ErrorEvent()
		}
		g.Fail(identity, event, err, &out)
	}
	return out
}

// Fail 把错误回给请求方
func (g *Gateway) Fail(identity, event string, err error, out *Result) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		g.logger.Error("Command failed", "identity", identity, "event", event, "error", err)
	} else {
		g.logger.Debug("Command rejected", "identity", identity, "event", event, "error", err)
	}

	out.Err = err
	g.emit(identity, out, Delta{
		Audience: AudienceSender,
		Event:    event,
		Payload: ErrorPayload{
			Message: apperr.MessageOf(err),
			Code:    kind.String(),
		},
	})
}

func (g *Gateway) createRoom(identity string, c CreateRoom, out *Result) error {
	username, err := room.NormalizeUsername(c.Username, g.maxUsername)
	if err != nil {
		return err
	}

	prev, hadPrev := g.RoomOf(identity)

	r, _, err := g.store.Create(identity, username, c.Passcode, func(res room.JoinResult) {
		g.enter(identity, res.RoomID)
		g.emit(identity, out, Delta{
			Audience: AudienceSender,
			RoomID:   res.RoomID,
			Event:    EventRoomCreated,
			Payload:  RoomEnteredPayload{RoomID: res.RoomID, User: res.User, Room: res.Snapshot},
		})
		g.pushStats(res.Stats)
	})
	if err != nil {
		return err
	}

	if hadPrev {
		g.leaveRoom(identity, prev, out)
	}
	g.logger.Info("Room created", "roomId", r.ID(), "identity", identity, "username", username)
	return nil
}

func (g *Gateway) joinRoom(identity string, c JoinRoom, out *Result) error {
	roomID, err := room.NormalizeID(c.RoomID)
	if err != nil {
		return err
	}
	username, err := room.NormalizeUsername(c.Username, g.maxUsername)
	if err != nil {
		return err
	}
	r, err := g.store.Get(roomID)
	if err != nil {
		return err
	}

	prev, hadPrev := g.RoomOf(identity)

	_, err = r.Join(identity, username, c.Passcode, func(res room.JoinResult) {
		g.enter(identity, res.RoomID)
		g.emit(identity, out, Delta{
			Audience: AudienceSender,
			RoomID:   res.RoomID,
			Event:    EventRoomJoined,
			Payload:  RoomEnteredPayload{RoomID: res.RoomID, User: res.User, Room: res.Snapshot},
		})
		g.emit(identity, out, Delta{
			Audience: AudienceRoomExceptSender,
			RoomID:   res.RoomID,
			Event:    EventUserJoined,
			Payload:  UserPayload{User: res.User},
		})
		g.pushStats(res.Stats)
	})
	if err != nil {
		return err
	}

	if hadPrev && prev != r.ID() {
		g.leaveRoom(identity, prev, out)
	}
	g.logger.Info("User joined room", "roomId", r.ID(), "identity", identity, "username", username)
	return nil
}

func (g *Gateway) resumeSession(identity string, c ResumeSession, out *Result) error {
	roomID, err := room.NormalizeID(c.RoomID)
	if err != nil {
		return err
	}
	username, err := room.NormalizeUsername(c.Username, g.maxUsername)
	if err != nil {
		return err
	}
	r, err := g.store.Get(roomID)
	if err != nil {
		return err
	}

	prev, hadPrev := g.RoomOf(identity)

	res, err := r.Resume(identity, username, c.Passcode, func(res room.ResumeResult) {
		if res.Replaced != nil {
			g.transport.SendTo(res.Replaced.ID, EventSessionReplaced, SessionReplacedPayload{
				RoomID:  res.RoomID,
				Message: "Session resumed from another connection",
			})
			g.exit(res.Replaced.ID, res.RoomID)
		}
		g.enter(identity, res.RoomID)
		g.emit(identity, out, Delta{
			Audience: AudienceSender,
			RoomID:   res.RoomID,
			Event:    EventSessionResumed,
			Payload:  RoomEnteredPayload{RoomID: res.RoomID, User: res.User, Room: res.Snapshot},
		})
		g.emit(identity, out, Delta{
			Audience: AudienceRoomExceptSender,
			RoomID:   res.RoomID,
			Event:    EventUserRejoined,
			Payload:  UserPayload{User: res.User},
		})
		if res.MembershipChanged() {
			g.emit(identity, out, Delta{
				Audience: AudienceRoom,
				RoomID:   res.RoomID,
				Event:    EventRoomUpdated,
				Payload:  RoomUpdatedPayload{Users: res.Snapshot.Users, HostID: res.HostID},
			})
		}
		g.pushStats(res.Stats)
	})
	if err != nil {
		return err
	}

	if hadPrev && prev != r.ID() {
		g.leaveRoom(identity, prev, out)
	}
	g.logger.Info("Session resumed",
		"roomId", r.ID(),
		"identity", identity,
		"username", username,
		"replaced", res.Replaced != nil,
		"hostReclaimed", res.HostReclaimed)
	return nil
}

func (g *Gateway) drawCard(identity string, c DrawCard, out *Result) error {
	r, err := g.lookup(c.RoomID)
	if err != nil {
		return err
	}

	_, err = r.Draw(identity, func(res room.DrawResult) {
		g.emit(identity, out, Delta{
			Audience: AudienceRoom,
			RoomID:   res.RoomID,
			Event:    EventCardDrawn,
			Payload: CardDrawnPayload{
				Card:         res.Card,
				HistoryEntry: res.Entry,
				DeckSize:     res.DeckSize,
				DrawnBy:      res.DrawnBy,
			},
		})
		g.pushStats(res.Stats)
	})
	return err
}

func (g *Gateway) reshuffleDeck(identity string, c ReshuffleDeck, out *Result) error {
	r, err := g.lookup(c.RoomID)
	if err != nil {
		return err
	}

	res, err := r.Reshuffle(identity, func(res room.ReshuffleResult) {
		g.emit(identity, out, Delta{
			Audience: AudienceRoom,
			RoomID:   res.RoomID,
			Event:    EventDeckReshuffled,
			Payload:  DeckReshuffledPayload{HistoryEntry: res.Entry, DeckSize: res.DeckSize},
		})
		g.pushStats(res.Stats)
	})
	if err != nil {
		return err
	}

	g.logger.Info("Deck reshuffled", "roomId", res.RoomID, "by", res.Entry.PerformedBy)
	return nil
}

func (g *Gateway) getRoomInfo(identity string, c GetRoomInfo, out *Result) error {
	r, err := g.lookup(c.RoomID)
	if err != nil {
		return err
	}

	g.emit(identity, out, Delta{
		Audience: AudienceSender,
		RoomID:   r.ID(),
		Event:    EventRoomInfo,
		Payload:  RoomInfoPayload{Room: r.Snapshot()},
	})
	return nil
}

// disconnect 连接断开，幂等
func (g *Gateway) disconnect(identity string, out *Result) {
	g.mu.Lock()
	roomID, ok := g.sessions[identity]
	delete(g.sessions, identity)
	g.mu.Unlock()

	if !ok {
		return
	}
	g.leaveRoom(identity, roomID, out)
}

// leaveRoom 离开房间并通知其他成员
// 房间已被清理或连接已被恢复会话替换时什么也不做
func (g *Gateway) leaveRoom(identity, roomID string, out *Result) {
	r, err := g.store.Get(roomID)
	if err != nil {
		g.transport.LeaveGroup(identity, roomID)
		return
	}

	res, err := r.Leave(identity, func(res room.LeaveResult) {
		g.exit(identity, res.RoomID)
		g.emit(identity, out, Delta{
			Audience: AudienceRoomExceptSender,
			RoomID:   res.RoomID,
			Event:    EventUserLeft,
			Payload:  UserPayload{User: res.User},
		})
		if len(res.Users) > 0 {
			g.emit(identity, out, Delta{
				Audience: AudienceRoom,
				RoomID:   res.RoomID,
				Event:    EventRoomUpdated,
				Payload:  RoomUpdatedPayload{Users: res.Users, HostID: res.HostID},
			})
		}
		g.pushStats(res.Stats)
	})
	if err != nil {
		if !errors.Is(err, room.ErrNotInRoom) && !errors.Is(err, room.ErrRoomNotFound) {
			g.logger.Error("Leave failed", "roomId", roomID, "identity", identity, "error", err)
		}
		g.transport.LeaveGroup(identity, roomID)
		return
	}

	g.logger.Info("User left room",
		"roomId", res.RoomID,
		"identity", identity,
		"username", res.User.Username,
		"remaining", len(res.Users),
		"hostChanged", res.HostChanged)
}

// RoomsEvicted 清理器回调：移除仍指向已删除房间的会话
func (g *Gateway) RoomsEvicted(_ context.Context, evicted []room.Evicted) {
	gone := make(map[string]struct{}, len(evicted))
	for _, e := range evicted {
		gone[e.ID] = struct{}{}
	}

	type binding struct{ identity, roomID string }
	var stale []binding

	g.mu.Lock()
	for identity, roomID := range g.sessions {
		if _, ok := gone[roomID]; ok {
			stale = append(stale, binding{identity, roomID})
			delete(g.sessions, identity)
		}
	}
	g.mu.Unlock()

	for _, b := range stale {
		g.transport.LeaveGroup(b.identity, b.roomID)
	}
	if g.stats != nil {
		for _, e := range evicted {
			g.stats.RemoveRoom(e.ID)
		}
	}
}

func (g *Gateway) lookup(roomID string) (*room.Room, error) {
	id, err := room.NormalizeID(roomID)
	if err != nil {
		return nil, err
	}
	return g.store.Get(id)
}

// enter 绑定会话并加入广播组，在房间锁内调用
func (g *Gateway) enter(identity, roomID string) {
	g.mu.Lock()
	g.sessions[identity] = roomID
	g.mu.Unlock()
	g.transport.JoinGroup(identity, roomID)
}

// exit 解绑会话（仅当仍指向该房间）并退出广播组，在房间锁内调用
func (g *Gateway) exit(identity, roomID string) {
	g.mu.Lock()
	if g.sessions[identity] == roomID {
		delete(g.sessions, identity)
	}
	g.mu.Unlock()
	g.transport.LeaveGroup(identity, roomID)
}

// emit 记录并投递一条消息
func (g *Gateway) emit(identity string, out *Result, d Delta) {
	out.Deltas = append(out.Deltas, d)

	switch d.Audience {
	case AudienceSender:
		g.transport.SendTo(identity, d.Event, d.Payload)
	case AudienceRoom:
		g.transport.Broadcast(d.RoomID, d.Event, d.Payload)
	case AudienceRoomExceptSender:
		g.transport.BroadcastExcept(d.RoomID, identity, d.Event, d.Payload)
	}

	if g.mirror != nil && d.RoomID != "" && (d.Audience != AudienceSender || d.Event == EventRoomCreated) {
		g.mirror.MirrorDelta(d.RoomID, d.Event, d.Payload)
	}
}

// pushStats 在房间锁内调用，摘要的入队顺序与变更顺序一致
func (g *Gateway) pushStats(stats room.Stats) {
	if g.stats != nil {
		g.stats.UpdateRoom(stats)
	}
}

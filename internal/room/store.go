package room

import (
	"log/slog"
	"sync"
	"time"

	"sudooom.cardroom/internal/deck"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6

	defaultCodeAttempts = 32
	defaultHostGrace    = 15 * time.Minute
)

// Store 房间存储
// mu 只保护索引本身，房间状态由各自的锁保护
//
// 使用示例：
//
//	store := NewStore(WithHostGrace(15*time.Minute))
//	r, res, err := store.Create(connID, "Anna", "", nil)
//	r, err = store.Get("AB12CD")
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	shuffler     *deck.Shuffler
	newCode      func() string
	now          func() time.Time
	hostGrace    time.Duration
	codeAttempts int

	logger *slog.Logger
}

// Option Store 配置项
type Option func(*Store)

// WithShuffler 指定洗牌器
func WithShuffler(s *deck.Shuffler) Option {
	return func(st *Store) { st.shuffler = s }
}

// WithCodeGenerator 指定房间号生成函数
func WithCodeGenerator(fn func() string) Option {
	return func(st *Store) { st.newCode = fn }
}

// WithClock 指定时钟
func WithClock(fn func() time.Time) Option {
	return func(st *Store) { st.now = fn }
}

// WithHostGrace 原房主离开后可以通过恢复会话取回房主的时长
func WithHostGrace(d time.Duration) Option {
	return func(st *Store) { st.hostGrace = d }
}

// WithCodeAttempts 生成房间号的最大尝试次数
func WithCodeAttempts(n int) Option {
	return func(st *Store) { st.codeAttempts = n }
}

// NewStore 创建房间存储
func NewStore(opts ...Option) *Store {
	s := &Store{
		rooms:        make(map[string]*Room),
		now:          time.Now,
		hostGrace:    defaultHostGrace,
		codeAttempts: defaultCodeAttempts,
		logger:       slog.Default().With("component", "RoomStore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.shuffler == nil {
		s.shuffler = deck.NewShuffler()
	}
	if s.newCode == nil {
		s.newCode = s.randomCode
	}
	return s
}

// Create 创建房间，创建者作为唯一成员和房主
// commit 在房间发布到索引之后、其他请求能修改它之前执行
func (s *Store) Create(identity, username, passcode string, commit Commit[JoinResult]) (*Room, JoinResult, error) {
	cards := deck.Build(s.shuffler)

	s.mu.Lock()
	id, ok := s.allocateCodeLocked()
	if !ok {
		s.mu.Unlock()
		s.logger.Error("Room code space exhausted", "attempts", s.codeAttempts, "rooms", len(s.rooms))
		return nil, JoinResult{}, ErrCodeExhausted
	}

	r := newRoom(id, passcode, cards, s)
	r.mu.Lock()
	s.rooms[id] = r
	s.mu.Unlock()
	defer r.mu.Unlock()

	user := r.addUser(identity, username, true)
	res := JoinResult{
		RoomID:   id,
		User:     user,
		Snapshot: r.snapshotLocked(),
		Stats:    r.statsLocked(),
	}
	if commit != nil {
		commit(res)
	}

	s.logger.Info("Room created", "roomId", id, "username", username)
	return r, res, nil
}

// Get 按房间号查找
func (s *Store) Get(roomID string) (*Room, error) {
	id, err := NormalizeID(roomID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	r, ok := s.rooms[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Delete 无条件删除房间，正在进行的操作会得到 ErrRoomNotFound
func (s *Store) Delete(roomID string) {
	id, err := NormalizeID(roomID)
	if err != nil {
		return
	}

	s.mu.Lock()
	r, ok := s.rooms[id]
	delete(s.rooms, id)
	s.mu.Unlock()

	if ok {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		s.logger.Info("Removed room", "roomId", id)
	}
}

// Count 返回当前房间数
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Range 遍历房间，fn 返回 false 时停止
// 遍历的是调用时的房间列表，fn 内可以安全地加房间锁
func (s *Store) Range(fn func(r *Room) bool) {
	s.mu.RLock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.RUnlock()

	for _, r := range rooms {
		if !fn(r) {
			return
		}
	}
}

func (s *Store) allocateCodeLocked() (string, bool) {
	for i := 0; i < s.codeAttempts; i++ {
		id := s.newCode()
		if _, exists := s.rooms[id]; !exists {
			return id, true
		}
	}
	return "", false
}

func (s *Store) randomCode() string {
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[s.shuffler.Intn(len(codeAlphabet))]
	}
	return string(b)
}

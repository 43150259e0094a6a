package room

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"sudooom.cardroom/internal/deck"
)

// User 房间成员
type User struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	IsHost   bool      `json:"isHost"`
	JoinedAt time.Time `json:"joinedAt"`
}

const (
	ActionDraw      = "draw"
	ActionReshuffle = "reshuffle"
)

// HistoryEntry 房间操作记录，追加后不再修改
type HistoryEntry struct {
	ID             string     `json:"id"`
	Action         string     `json:"action"`
	Card           *deck.Card `json:"card,omitempty"`
	DrawnBy        string     `json:"drawnBy,omitempty"`
	PerformedBy    string     `json:"performedBy,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
	CardsRemaining int        `json:"cardsRemaining"`
}

// Snapshot 房间完整状态，加入/创建/恢复/查询时下发
type Snapshot struct {
	ID       string         `json:"id"`
	Users    []User         `json:"users"`
	DeckSize int            `json:"deckSize"`
	History  []HistoryEntry `json:"history"`
}

// Commit 在房间锁内执行的回调，用于按变更顺序投递消息
type Commit[T any] func(T)

// departure 离开成员的最后角色，用于宽限期内恢复房主
type departure struct {
	wasHost bool
	at      time.Time
}

// Room 房间实例
// 所有字段由 mu 保护；deck 末尾是下一张要抽的牌
type Room struct {
	mu sync.Mutex

	id        string
	passcode  string
	shuffler  *deck.Shuffler
	now       func() time.Time
	hostGrace time.Duration

	hostID   string
	deck     []deck.Card
	drawn    []deck.Card
	history  []HistoryEntry
	members  []*User
	departed map[string]departure

	createdAt    time.Time
	lastActivity time.Time
	closed       bool
}

func newRoom(id, passcode string, cards []deck.Card, s *Store) *Room {
	now := s.now()
	return &Room{
		id:           id,
		passcode:     passcode,
		shuffler:     s.shuffler,
		now:          s.now,
		hostGrace:    s.hostGrace,
		deck:         cards,
		drawn:        make([]deck.Card, 0, deck.Size),
		history:      make([]HistoryEntry, 0),
		members:      make([]*User, 0, 4),
		departed:     make(map[string]departure),
		createdAt:    now,
		lastActivity: now,
	}
}

// ID 返回房间号
func (r *Room) ID() string {
	return r.id
}

// Snapshot 获取房间快照（只读）
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// MemberCount 当前成员数
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// HostID 当前房主的连接标识，空房间返回空串
func (r *Room) HostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

// IsMember 判断连接是否在房间内
func (r *Room) IsMember(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexOf(identity) >= 0
}

// Stats 房间摘要
type Stats struct {
	ID           string    `json:"id"`
	Members      int       `json:"members"`
	DeckSize     int       `json:"deckSize"`
	HistoryLen   int       `json:"historyLen"`
	Host         string    `json:"host"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// Stats 获取房间摘要
func (r *Room) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statsLocked()
}

func (r *Room) statsLocked() Stats {
	host := ""
	for _, m := range r.members {
		if m.IsHost {
			host = m.Username
			break
		}
	}
	return Stats{
		ID:           r.id,
		Members:      len(r.members),
		DeckSize:     len(r.deck),
		HistoryLen:   len(r.history),
		Host:         host,
		CreatedAt:    r.createdAt,
		LastActivity: r.lastActivity,
	}
}

func (r *Room) snapshotLocked() Snapshot {
	history := make([]HistoryEntry, len(r.history))
	copy(history, r.history)
	return Snapshot{
		ID:       r.id,
		Users:    r.usersLocked(),
		DeckSize: len(r.deck),
		History:  history,
	}
}

func (r *Room) passcodeMatches(passcode string) bool {
	return r.passcode == "" || r.passcode == passcode
}

func (r *Room) touch() {
	r.lastActivity = r.now()
}

// NormalizeID 房间号大小写不敏感，统一转大写
func NormalizeID(roomID string) (string, error) {
	id := strings.ToUpper(strings.TrimSpace(roomID))
	if id == "" {
		return "", ErrEmptyRoomID
	}
	return id, nil
}

// NormalizeUsername 去掉首尾空白并校验长度，maxLen <= 0 表示不限制
func NormalizeUsername(username string, maxLen int) (string, error) {
	name := strings.TrimSpace(username)
	if name == "" {
		return "", ErrEmptyUsername
	}
	if maxLen > 0 && utf8.RuneCountInString(name) > maxLen {
		return "", ErrUsernameTooLong
	}
	return name, nil
}

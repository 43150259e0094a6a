package room

import (
	"github.com/google/uuid"

	"sudooom.cardroom/internal/deck"
)

// DrawResult 抽牌结果
type DrawResult struct {
	RoomID   string
	Card     deck.Card
	Entry    HistoryEntry
	DeckSize int
	DrawnBy  string
	Stats    Stats
}

// ReshuffleResult 洗牌结果
type ReshuffleResult struct {
	RoomID   string
	Entry    HistoryEntry
	DeckSize int
	Stats    Stats
}

// Draw 从牌堆顶抽一张牌
func (r *Room) Draw(identity string, commit Commit[DrawResult]) (DrawResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return DrawResult{}, ErrRoomNotFound
	}
	idx := r.indexOf(identity)
	if idx < 0 {
		return DrawResult{}, ErrNotInRoom
	}
	if len(r.deck) == 0 {
		return DrawResult{}, ErrDeckEmpty
	}

	user := r.members[idx]
	last := len(r.deck) - 1
	card := r.deck[last]
	r.deck = r.deck[:last]
	r.drawn = append(r.drawn, card)
	r.touch()

	entry := HistoryEntry{
		ID:             uuid.NewString(),
		Action:         ActionDraw,
		Card:           &card,
		DrawnBy:        user.Username,
		Timestamp:      r.lastActivity,
		CardsRemaining: len(r.deck),
	}
	r.history = append(r.history, entry)

	res := DrawResult{
		RoomID:   r.id,
		Card:     card,
		Entry:    entry,
		DeckSize: len(r.deck),
		DrawnBy:  user.Username,
		Stats:    r.statsLocked(),
	}
	if commit != nil {
		commit(res)
	}
	return res, nil
}

// Reshuffle 把已抽出的牌放回并重新洗牌，仅房主可用
func (r *Room) Reshuffle(identity string, commit Commit[ReshuffleResult]) (ReshuffleResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ReshuffleResult{}, ErrRoomNotFound
	}
	idx := r.indexOf(identity)
	if idx < 0 {
		return ReshuffleResult{}, ErrNotInRoom
	}
	user := r.members[idx]
	if !user.IsHost {
		return ReshuffleResult{}, ErrNotHost
	}

	cards := make([]deck.Card, 0, deck.Size)
	cards = append(cards, r.deck...)
	cards = append(cards, r.drawn...)
	r.shuffler.Shuffle(cards)
	r.deck = cards
	r.drawn = r.drawn[:0]
	r.touch()

	entry := HistoryEntry{
		ID:             uuid.NewString(),
		Action:         ActionReshuffle,
		PerformedBy:    user.Username,
		Timestamp:      r.lastActivity,
		CardsRemaining: len(r.deck),
	}
	r.history = append(r.history, entry)

	res := ReshuffleResult{
		RoomID:   r.id,
		Entry:    entry,
		DeckSize: len(r.deck),
		Stats:    r.statsLocked(),
	}
	if commit != nil {
		commit(res)
	}
	return res, nil
}

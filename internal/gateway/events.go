package gateway

import (
	"sudooom.cardroom/internal/deck"
	"sudooom.cardroom/internal/room"
)

// 出站事件名
const (
	EventRoomCreated     = "room-created"
	EventRoomJoined      = "room-joined"
	EventUserJoined      = "user-joined"
	EventSessionResumed  = "session-resumed"
	EventUserRejoined    = "user-rejoined"
	EventCardDrawn       = "card-drawn"
	EventDeckReshuffled  = "deck-reshuffled"
	EventRoomInfo        = "room-info"
	EventUserLeft        = "user-left"
	EventRoomUpdated     = "room-updated"
	EventSessionReplaced = "session-replaced"

	EventCreateError    = "create-error"
	EventJoinError      = "join-error"
	EventResumeError    = "resume-error"
	EventDrawError      = "draw-error"
	EventReshuffleError = "reshuffle-error"
	EventRoomInfoError  = "room-info-error"
	EventError          = "error"
)

// RoomEnteredPayload room-created / room-joined / session-resumed
type RoomEnteredPayload struct {
	RoomID string        `json:"roomId"`
	User   room.User     `json:"user"`
	Room   room.Snapshot `json:"room"`
}

// UserPayload user-joined / user-rejoined / user-left
type UserPayload struct {
	User room.User `json:"user"`
}

type CardDrawnPayload struct {
	Card         deck.Card         `json:"card"`
	HistoryEntry room.HistoryEntry `json:"historyEntry"`
	DeckSize     int               `json:"deckSize"`
	DrawnBy      string            `json:"drawnBy"`
}

type DeckReshuffledPayload struct {
	HistoryEntry room.HistoryEntry `json:"historyEntry"`
	DeckSize     int               `json:"deckSize"`
}

type RoomInfoPayload struct {
	Room room.Snapshot `json:"room"`
}

type RoomUpdatedPayload struct {
	Users  []room.User `json:"users"`
	HostID string      `json:"hostId"`
}

// SessionReplacedPayload 同名成员以新连接恢复会话，旧连接被移出房间
type SessionReplacedPayload struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

// ErrorPayload 所有 *-error 事件的负载
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

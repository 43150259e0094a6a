package gateway

import (
	"encoding/json"

	"sudooom.cardroom/internal/apperr"
)

// 入站事件名
const (
	EventCreateRoom    = "create-room"
	EventJoinRoom      = "join-room"
	EventResumeSession = "resume-session"
	EventDrawCard      = "draw-card"
	EventReshuffleDeck = "reshuffle-deck"
	EventGetRoomInfo   = "get-room-info"
	EventDisconnect    = "disconnect"
)

var (
	ErrUnknownEvent     = apperr.New(apperr.KindInvalidInput, "UNKNOWN_EVENT", "Unknown event")
	ErrMalformedPayload = apperr.New(apperr.KindInvalidInput, "MALFORMED_PAYLOAD", "Malformed payload")
)

// Command 一个入站请求
type Command interface {
	// Event 入站事件名
	Event() string
	// ErrorEvent 失败时回给请求方的事件名
	ErrorEvent() string
}

type CreateRoom struct {
	Username string `json:"username"`
	Passcode string `json:"passcode"`
}

type JoinRoom struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	Passcode string `json:"passcode"`
}

type ResumeSession struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	Passcode string `json:"passcode"`
}

type DrawCard struct {
	RoomID string `json:"roomId"`
}

type ReshuffleDeck struct {
	RoomID string `json:"roomId"`
}

type GetRoomInfo struct {
	RoomID string `json:"roomId"`
}

// Disconnect 由传输层在连接断开时提交
type Disconnect struct{}

func (CreateRoom) Event() string    { return EventCreateRoom }
func (JoinRoom) Event() string      { return EventJoinRoom }
func (ResumeSession) Event() string { return EventResumeSession }
func (DrawCard) Event() string      { return EventDrawCard }
func (ReshuffleDeck) Event() string { return EventReshuffleDeck }
func (GetRoomInfo) Event() string   { return EventGetRoomInfo }
func (Disconnect) Event() string    { return EventDisconnect }

func (CreateRoom) ErrorEvent() string    { return EventCreateError }
func (JoinRoom) ErrorEvent() string      { return EventJoinError }
func (ResumeSession) ErrorEvent() string { return EventResumeError }
func (DrawCard) ErrorEvent() string      { return EventDrawError }
func (ReshuffleDeck) ErrorEvent() string { return EventReshuffleError }
func (GetRoomInfo) ErrorEvent() string   { return EventRoomInfoError }
func (Disconnect) ErrorEvent() string    { return EventError }

// DecodeCommand 把事件名和 JSON 数据解析为命令
func DecodeCommand(event string, data json.RawMessage) (Command, error) {
	var cmd Command
	switch event {
	case EventCreateRoom:
		c := CreateRoom{}
		if err := decode(data, &c); err != nil {
			return nil, err
		}
		cmd = c
	case EventJoinRoom:
		c := JoinRoom{}
		if err := decode(data, &c); err != nil {
			return nil, err
		}
		cmd = c
	case EventResumeSession:
		c := ResumeSession{}
		if err := decode(data, &c); err != nil {
			return nil, err
		}
		cmd = c
	case EventDrawCard:
		c := DrawCard{}
		if err := decode(data, &c); err != nil {
			return nil, err
		}
		cmd = c
	case EventReshuffleDeck:
		c := ReshuffleDeck{}
		if err := decode(data, &c); err != nil {
			return nil, err
		}
		cmd = c
	case EventGetRoomInfo:
		c := GetRoomInfo{}
		if err := decode(data, &c); err != nil {
			return nil, err
		}
		cmd = c
	default:
		return nil, ErrUnknownEvent.WithMessage("Unknown event: " + event)
	}
	return cmd, nil
}

// ErrorEventFor 返回入站事件失败时对应的出站事件名
func ErrorEventFor(event string) string {
	switch event {
	case EventCreateRoom:
		return EventCreateError
	case EventJoinRoom:
		return EventJoinError
	case EventResumeSession:
		return EventResumeError
	case EventDrawCard:
		return EventDrawError
	case EventReshuffleDeck:
		return EventReshuffleError
	case EventGetRoomInfo:
		return EventRoomInfoError
	default:
		return EventError
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return ErrMalformedPayload.Wrap(err)
	}
	return nil
}

package room

import "sudooom.cardroom/internal/apperr"

// 房间错误定义

var (
	ErrRoomNotFound    = apperr.New(apperr.KindNotFound, "ROOM_NOT_FOUND", "Room not found")
	ErrInvalidPasscode = apperr.New(apperr.KindUnauthorized, "INVALID_PASSCODE", "Invalid passcode")
	ErrNotHost         = apperr.New(apperr.KindUnauthorized, "NOT_ROOM_HOST", "Only the host can reshuffle the deck")
	ErrNotInRoom       = apperr.New(apperr.KindInvalidState, "NOT_IN_ROOM", "You are not a member of this room")
	ErrAlreadyInRoom   = apperr.New(apperr.KindInvalidState, "ALREADY_IN_ROOM", "You are already in this room")
	ErrDeckEmpty       = apperr.New(apperr.KindInvalidState, "DECK_EMPTY", "No cards left in the deck")
	ErrEmptyUsername   = apperr.New(apperr.KindInvalidInput, "EMPTY_USERNAME", "Username is required")
	ErrUsernameTooLong = apperr.New(apperr.KindInvalidInput, "USERNAME_TOO_LONG", "Username is too long")
	ErrEmptyRoomID     = apperr.New(apperr.KindInvalidInput, "EMPTY_ROOM_ID", "Room id is required")
	ErrCodeExhausted   = apperr.New(apperr.KindInternal, "ROOM_CODE_EXHAUSTED", "Could not allocate a room code")
)

package domain

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrNotAMember     = errors.New("connection is not a member of the room")
	ErrInvalidEvent   = errors.New("invalid event payload")
	ErrUnknownEvent   = errors.New("unknown event kind")
	ErrConnectionGone = errors.New("connection is gone")
	ErrSendBufferFull = errors.New("send buffer full")
	ErrNotInAnyRoom   = errors.New("connection has not joined a room")
)

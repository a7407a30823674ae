package http

import (
	"time"

	"github.com/collabcode/hub-service/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateRoomRequest struct {
	Name       string `json:"name"`
	MaxEditors int64  `json:"max_editors"`
}

type RoomItem struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	MaxEditors int64     `json:"max_editors"`
	CreatedAt  time.Time `json:"created_at"`
}

type RoomsListResponse struct {
	Items      []RoomItem `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

type ParticipantsResponse struct {
	RoomID       string                  `json:"room_id"`
	Items        []domain.MemberSnapshot `json:"items"`
	LastSequence uint64                  `json:"last_sequence"`
}

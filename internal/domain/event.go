package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

type EventKind string

// Closed set of relayed event kinds. Unknown discriminants are rejected at
// the transport boundary, never silently forwarded.
const (
	KindUserJoined  EventKind = "user_joined"
	KindUserLeft    EventKind = "user_left"
	KindCodeChange  EventKind = "code_change"
	KindCursorMove  EventKind = "cursor_move"
	KindTyping      EventKind = "typing"
	KindFileCreated EventKind = "file_created"
	KindFileDeleted EventKind = "file_deleted"
	KindFileRenamed EventKind = "file_renamed"
	KindRoomJoined  EventKind = "room_joined"
	KindRoomLeft    EventKind = "room_left"
)

// LeaveReason classifies why a connection left a room.
type LeaveReason string

const (
	LeaveVoluntary      LeaveReason = "voluntary"
	LeaveTimeout        LeaveReason = "timeout"
	LeaveTransportError LeaveReason = "transport_error"
)

// Event is one hub-relayed occurrence. Origin is the connection it came
// from; Seq is stamped by the broadcast router, per room, monotonically
// increasing from 1. Payload holds exactly one of the typed payload structs
// below, matching Kind.
type Event struct {
	Kind    EventKind
	RoomID  string
	Origin  uuid.UUID
	Seq     uint64
	Payload any
}

type UserJoinedPayload struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

type UserLeftPayload struct {
	UserID   int64       `json:"user_id"`
	Username string      `json:"username"`
	Reason   LeaveReason `json:"reason"`
}

// CodeChangePayload is relayed verbatim; the hub never interprets edit
// contents, merge semantics belong to a higher layer.
type CodeChangePayload struct {
	Path   string          `json:"path"`
	Change json.RawMessage `json:"change"`
}

type CursorMovePayload struct {
	Cursor CursorPosition `json:"cursor"`
}

type TypingPayload struct {
	IsTyping bool `json:"is_typing"`
}

type FileCreatedPayload struct {
	Path string `json:"path"`
}

type FileDeletedPayload struct {
	Path string `json:"path"`
}

type FileRenamedPayload struct {
	OldPath string `json:"old_path"`
	NewPath string `json:"new_path"`
}

// MemberSnapshot pairs a participant with its presence, as seen at one
// instant of the registry.
type MemberSnapshot struct {
	UserID     int64         `json:"user_id"`
	Username   string        `json:"username"`
	ConnID     uuid.UUID     `json:"connection_id"`
	JoinedAt   int64         `json:"joined_at_unix"`
	LastSeenAt int64         `json:"last_seen_unix"`
	Presence   PresenceState `json:"presence"`
}

// RoomJoinedPayload confirms a join to the joiner itself, carrying the full
// membership snapshot so the client can reconcile after a (re)connect.
type RoomJoinedPayload struct {
	Members      []MemberSnapshot `json:"members"`
	LastSequence uint64           `json:"last_sequence"`
}

type RoomLeftPayload struct {
	RoomID string `json:"room_id"`
}

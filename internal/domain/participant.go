package domain

import (
	"time"

	"github.com/google/uuid"
)

// Participant is one live connection inside a room.
type Participant struct {
	ConnID   uuid.UUID
	UserID   int64
	Username string
	JoinedAt time.Time
}

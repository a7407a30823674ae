package domain

import "time"

// Room is directory metadata for a collaboration session. Live membership is
// not part of it; that lives in the in-memory registry.
type Room struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	MaxEditors int64     `db:"max_editors"`
	CreatedAt  time.Time `db:"created_at"`
}

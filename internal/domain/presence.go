package domain

import "time"

// CursorPosition points into a file of the shared workspace.
type CursorPosition struct {
	Path   string `json:"path"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// PresenceState is per-member ephemeral state. Only events originating from
// the owning connection may mutate it.
type PresenceState struct {
	Cursor        *CursorPosition `json:"cursor,omitempty"`
	IsTyping      bool            `json:"is_typing"`
	LastUpdatedAt time.Time       `json:"last_updated_at"`
}

// PresenceUpdate is a partial update; nil fields are left untouched.
type PresenceUpdate struct {
	Cursor   *CursorPosition
	IsTyping *bool
}

package postgres

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/collabcode/hub-service/internal/domain"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// roomCursor marks the last row of a directory page; listing resumes strictly
// after it in (created_at DESC, id DESC) order. Clients treat it as opaque.
type roomCursor struct {
	CreatedAt time.Time `json:"c"`
	ID        string    `json:"i"`
}

func cursorAfter(rm domain.Room) string {
	data, err := json.Marshal(roomCursor{CreatedAt: rm.CreatedAt, ID: rm.ID})
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// parseCursor accepts the empty string as "first page".
func parseCursor(s string) (roomCursor, bool, error) {
	if s == "" {
		return roomCursor{}, false, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return roomCursor{}, false, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var c roomCursor
	if err := json.Unmarshal(data, &c); err != nil {
		return roomCursor{}, false, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if c.CreatedAt.IsZero() || c.ID == "" {
		return roomCursor{}, false, ErrInvalidCursor
	}
	return c, true, nil
}

package domain

import "time"

// Identity is the verified result of a handshake token. It is produced once
// per connection and never changes afterwards; TokenExpiry is informational
// only, expiry is not re-checked mid-session.
type Identity struct {
	UserID      int64
	Username    string
	TokenExpiry time.Time
}

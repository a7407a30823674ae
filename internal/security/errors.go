package security

import "errors"

// Auth errors are fatal to the connection; the server never retries, a
// client may reconnect with a fresh token.
var (
	ErrTokenMissing   = errors.New("token missing")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenExpired   = errors.New("token expired or not valid yet")
)

// Machine-readable close reasons, sent in the websocket close frame.
const (
	ReasonAuthMissing   = "auth_missing"
	ReasonAuthMalformed = "auth_malformed"
	ReasonAuthExpired   = "auth_expired"
)

// Application close codes (4000-4999 range is reserved for applications).
const (
	CloseCodeAuthMissing   = 4001
	CloseCodeAuthMalformed = 4002
	CloseCodeAuthExpired   = 4003
)

// CloseReason maps an auth error to its wire reason code.
func CloseReason(err error) (code int, reason string) {
	switch {
	case errors.Is(err, ErrTokenMissing):
		return CloseCodeAuthMissing, ReasonAuthMissing
	case errors.Is(err, ErrTokenExpired):
		return CloseCodeAuthExpired, ReasonAuthExpired
	default:
		return CloseCodeAuthMalformed, ReasonAuthMalformed
	}
}

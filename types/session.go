package types

import "time"

// Session is a server-side session record. The credential handed to the
// client is an opaque random token; only its SHA-256 hash is stored.
type Session struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	TokenHash string    `json:"-" db:"token_hash"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsExpired reports whether the session is past its expiry at the given time.
func (s Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

package types

import "time"

// VerificationToken is a single-use artifact proving control of an email
// address. Only the SHA-256 hash of the token is stored; the plaintext is
// handed to the mailer once and never persisted.
type VerificationToken struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	TokenHash string    `json:"-" db:"token_hash"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	Consumed  bool      `json:"consumed" db:"consumed"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsExpired reports whether the token is past its expiry at the given time.
func (t VerificationToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

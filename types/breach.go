package types

import "time"

// Breach event kinds recorded by the monitor worker.
const (
	BreachKindFailedLogin   = "failed_login"
	BreachKindNewSession    = "new_session"
	BreachKindPasswordSpray = "password_spray"
)

// BreachEvent is a security observation recorded for a user, surfaced on the
// dashboard's breach monitor.
type BreachEvent struct {
	ID         int       `json:"id" db:"id"`
	UserID     int       `json:"-" db:"user_id"`
	Kind       string    `json:"kind" db:"kind"`
	Detail     string    `json:"detail" db:"detail"`
	ObservedAt time.Time `json:"observed_at" db:"observed_at"`
}

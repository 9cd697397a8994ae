// Package events carries security-relevant auth events (registrations,
// logins, failed logins) over a message broker to the breach monitor worker.
// The broker is pluggable: RabbitMQ, Google Pub/Sub, or disabled entirely.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Channel is the single broker channel all security events flow through.
const Channel = "syncveil.security-events"

// Event types published by the auth service.
const (
	TypeUserRegistered = "user.registered"
	TypeUserVerified   = "user.verified"
	TypeLoginSucceeded = "login.succeeded"
	TypeLoginFailed    = "login.failed"
)

// Event is a security observation about a user account. Email is carried for
// failed logins against unknown accounts, where no user id exists.
type Event struct {
	Type   string    `json:"type"`
	UserID int       `json:"user_id,omitempty"`
	Email  string    `json:"email,omitempty"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// Handler processes an event. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, event Event) error

// Backend defines the broker-agnostic operations the bus needs.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler func(ctx context.Context, data []byte) error) error
	Close() error
}

// Bus publishes and consumes typed security events over a backend.
type Bus struct {
	backend Backend
}

// NewBus wraps the given backend. A nil backend yields a no-op bus, so
// callers never need to branch on whether events are enabled.
func NewBus(backend Backend) *Bus {
	return &Bus{backend: backend}
}

// Publish sends the event to the security channel. The timestamp is filled
// in if the caller left it zero.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	if b == nil || b.backend == nil {
		return nil
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = b.backend.Publish(ctx, Channel, data, map[string]string{"type": event.Type})
	return err
}

// Subscribe consumes events from the security channel until ctx ends.
// Undecodable payloads are dropped rather than redelivered forever.
func (b *Bus) Subscribe(ctx context.Context, handler Handler) error {
	if b == nil || b.backend == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return b.backend.Subscribe(ctx, Channel, func(ctx context.Context, data []byte) error {
		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			return nil
		}
		return handler(ctx, event)
	})
}

// Close closes the underlying backend.
func (b *Bus) Close() error {
	if b == nil || b.backend == nil {
		return nil
	}
	return b.backend.Close()
}

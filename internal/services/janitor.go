package services

import (
	"context"
	"log/slog"
	"time"
)

// Janitor periodically deletes expired sessions and verification tokens.
// It is routine hygiene, not load-bearing: expiry is always also enforced
// at verification and consumption time.
type Janitor struct {
	sessions SessionRepository
	tokens   TokenRepository
	interval time.Duration
	logger   *slog.Logger
}

func NewJanitor(sessions SessionRepository, tokens TokenRepository, interval time.Duration, logger *slog.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{sessions: sessions, tokens: tokens, interval: interval, logger: logger}
}

// Run sweeps on a ticker until ctx ends.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	now := time.Now()
	if deleted, err := j.sessions.DeleteExpired(ctx, now); err != nil {
		j.logger.Error("session sweep failed", "error", err)
	} else if deleted > 0 {
		j.logger.Info("expired sessions deleted", "count", deleted)
	}
	if deleted, err := j.tokens.DeleteExpired(ctx, now); err != nil {
		j.logger.Error("token sweep failed", "error", err)
	} else if deleted > 0 {
		j.logger.Info("expired verification tokens deleted", "count", deleted)
	}
}

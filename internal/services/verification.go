package services

import (
	"context"
	"errors"
	"time"

	"github.com/syncveil/apiserver/internal/auth"
	"github.com/syncveil/apiserver/internal/store"
	"github.com/syncveil/apiserver/types"
)

// TokenRepository defines persistence operations for verification tokens.
type TokenRepository interface {
	Create(ctx context.Context, token types.VerificationToken) (types.VerificationToken, error)
	GetByHash(ctx context.Context, tokenHash string) (types.VerificationToken, error)
	Consume(ctx context.Context, tokenHash string, now time.Time) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// VerificationService issues and consumes single-use email verification
// tokens.
type VerificationService struct {
	tokens TokenRepository
	ttl    time.Duration
}

func NewVerificationService(tokens TokenRepository, ttl time.Duration) *VerificationService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &VerificationService{tokens: tokens, ttl: ttl}
}

// Issue creates a verification token for the user and returns the plaintext
// for embedding in an outbound email. Prior unconsumed tokens for the user
// are invalidated by the store.
func (s *VerificationService) Issue(ctx context.Context, userID int) (string, error) {
	token, hash, err := auth.GenerateToken()
	if err != nil {
		return "", err
	}
	_, err = s.tokens.Create(ctx, types.VerificationToken{
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(s.ttl),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Consume atomically marks the token used and returns the owning user id.
// The store's single check-and-set decides the winner under concurrency;
// when it misses, the token row's state determines which error kind the
// caller sees.
func (s *VerificationService) Consume(ctx context.Context, token string) (int, error) {
	hash := auth.HashToken(token)
	now := time.Now()

	userID, err := s.tokens.Consume(ctx, hash, now)
	if err == nil {
		return userID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, err
	}

	record, lookupErr := s.tokens.GetByHash(ctx, hash)
	if lookupErr != nil {
		if errors.Is(lookupErr, store.ErrNotFound) {
			return 0, auth.ErrTokenNotFound
		}
		return 0, lookupErr
	}
	if record.Consumed {
		return 0, auth.ErrTokenAlreadyConsumed
	}
	if record.IsExpired(now) {
		return 0, auth.ErrTokenExpired
	}
	// The atomic consume missed but the row looks live: another consumer won
	// between the two statements.
	return 0, auth.ErrTokenAlreadyConsumed
}

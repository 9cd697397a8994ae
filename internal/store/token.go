package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/syncveil/apiserver/types"
)

// TokenRepository handles persistence for email verification tokens.
type TokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create inserts a verification token row. Prior unconsumed tokens for the
// same user are removed first, so at most one live token exists per user.
func (r *TokenRepository) Create(ctx context.Context, token types.VerificationToken) (types.VerificationToken, error) {
	token.CreatedAt = time.Now()

	const cleanup = `DELETE FROM verification_tokens WHERE user_id = $1 AND NOT consumed`
	if _, err := r.db.ExecContext(ctx, cleanup, token.UserID); err != nil {
		return types.VerificationToken{}, err
	}

	const query = `
		INSERT INTO verification_tokens (user_id, token_hash, expires_at, consumed, created_at)
		VALUES ($1, $2, $3, FALSE, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
		token.CreatedAt,
	).Scan(&token.ID); err != nil {
		return types.VerificationToken{}, err
	}
	return token, nil
}

// GetByHash returns the token row for the given hash regardless of state.
func (r *TokenRepository) GetByHash(ctx context.Context, tokenHash string) (types.VerificationToken, error) {
	const query = `
		SELECT id, user_id, token_hash, expires_at, consumed, created_at
		FROM verification_tokens
		WHERE token_hash = $1`
	var token types.VerificationToken
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.Consumed,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.VerificationToken{}, ErrNotFound
		}
		return types.VerificationToken{}, err
	}
	return token, nil
}

// Consume marks the unconsumed, unexpired token with the given hash as used
// and returns its owning user id. The single UPDATE is the atomic
// check-and-set: under concurrent consumption exactly one caller gets a row
// back; everyone else sees ErrNotFound and must inspect the row's state.
func (r *TokenRepository) Consume(ctx context.Context, tokenHash string, now time.Time) (int, error) {
	const query = `
		UPDATE verification_tokens
		SET consumed = TRUE
		WHERE token_hash = $1
		  AND NOT consumed
		  AND expires_at > $2
		RETURNING user_id`
	var userID int
	if err := r.db.QueryRowContext(ctx, query, tokenHash, now).Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return userID, nil
}

// DeleteExpired removes tokens past their expiry and returns the count.
func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM verification_tokens WHERE expires_at <= $1`
	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

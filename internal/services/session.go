package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/syncveil/apiserver/config"
	"github.com/syncveil/apiserver/internal/auth"
	"github.com/syncveil/apiserver/internal/store"
	"github.com/syncveil/apiserver/types"
)

// SessionRepository defines persistence operations for server-side sessions.
type SessionRepository interface {
	Create(ctx context.Context, session types.Session) (types.Session, error)
	GetByHash(ctx context.Context, tokenHash string) (types.Session, error)
	DeleteByHash(ctx context.Context, tokenHash string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Issuer issues, verifies, and revokes session credentials. Verification is
// read-only and safe to call concurrently; Revoke is the only mutation.
type Issuer interface {
	// Issue returns a credential for the user with a bounded lifetime.
	Issue(ctx context.Context, userID int) (string, error)

	// Verify resolves a credential to a user id, or auth.ErrNotAuthenticated.
	Verify(ctx context.Context, credential string) (int, error)

	// Revoke invalidates a credential. It is idempotent: revoking an unknown
	// or already-revoked credential is not an error.
	Revoke(ctx context.Context, credential string) error
}

// NewIssuer selects the credential strategy from config: "database" for
// opaque revocable sessions, "jwt" for stateless signed tokens.
func NewIssuer(cfg config.AuthConfig, sessions SessionRepository) (Issuer, error) {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	switch strings.ToLower(strings.TrimSpace(cfg.SessionBackend)) {
	case "", "database":
		return NewDatabaseIssuer(sessions, ttl), nil
	case "jwt":
		if strings.TrimSpace(cfg.JWTSecret) == "" {
			return nil, errors.New("JWT_SECRET is required for the jwt session backend")
		}
		return NewJWTIssuer([]byte(cfg.JWTSecret), ttl), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

// DatabaseIssuer issues opaque random tokens backed by a sessions table.
// Only the SHA-256 hash of a token is stored, and revocation deletes the
// row, so logout is immediate and complete.
type DatabaseIssuer struct {
	sessions SessionRepository
	ttl      time.Duration
}

func NewDatabaseIssuer(sessions SessionRepository, ttl time.Duration) *DatabaseIssuer {
	return &DatabaseIssuer{sessions: sessions, ttl: ttl}
}

func (i *DatabaseIssuer) Issue(ctx context.Context, userID int) (string, error) {
	token, hash, err := auth.GenerateToken()
	if err != nil {
		return "", err
	}
	_, err = i.sessions.Create(ctx, types.Session{
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(i.ttl),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

func (i *DatabaseIssuer) Verify(ctx context.Context, credential string) (int, error) {
	if credential == "" {
		return 0, auth.ErrNotAuthenticated
	}
	session, err := i.sessions.GetByHash(ctx, auth.HashToken(credential))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, auth.ErrNotAuthenticated
		}
		return 0, err
	}
	if session.IsExpired(time.Now()) {
		return 0, auth.ErrNotAuthenticated
	}
	return session.UserID, nil
}

func (i *DatabaseIssuer) Revoke(ctx context.Context, credential string) error {
	if credential == "" {
		return nil
	}
	return i.sessions.DeleteByHash(ctx, auth.HashToken(credential))
}

// JWTIssuer issues self-contained HS256 tokens verifiable without a store
// lookup. Revoke is a no-op: with no revocation list, a signed token stays
// valid until it expires, so logout is best-effort. Deployments that need
// immediate revocation should use the database backend.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTIssuer(secret []byte, ttl time.Duration) *JWTIssuer {
	return &JWTIssuer{secret: secret, ttl: ttl}
}

func (i *JWTIssuer) Issue(_ context.Context, userID int) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

func (i *JWTIssuer) Verify(_ context.Context, credential string) (int, error) {
	if credential == "" {
		return 0, auth.ErrNotAuthenticated
	}
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(credential, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, auth.ErrNotAuthenticated
	}
	userID, err := strconv.Atoi(strings.TrimSpace(claims.Subject))
	if err != nil || userID < 1 {
		return 0, auth.ErrNotAuthenticated
	}
	return userID, nil
}

func (i *JWTIssuer) Revoke(_ context.Context, _ string) error {
	return nil
}

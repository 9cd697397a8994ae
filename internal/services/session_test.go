package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/syncveil/apiserver/config"
	"github.com/syncveil/apiserver/internal/auth"
	"github.com/syncveil/apiserver/internal/store"
	"github.com/syncveil/apiserver/types"
)

func TestDatabaseIssuerLifecycle(t *testing.T) {
	ctx := context.Background()
	issuer := NewDatabaseIssuer(store.NewMemoryStore().Sessions(), time.Hour)

	credential, err := issuer.Issue(ctx, 42)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	userID, err := issuer.Verify(ctx, credential)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != 42 {
		t.Fatalf("verify resolved to user %d, want 42", userID)
	}

	if err := issuer.Revoke(ctx, credential); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := issuer.Verify(ctx, credential); !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated after revoke, got %v", err)
	}
	if err := issuer.Revoke(ctx, credential); err != nil {
		t.Fatalf("repeated revoke must succeed: %v", err)
	}
}

func TestDatabaseIssuerRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	issuer := NewDatabaseIssuer(store.NewMemoryStore().Sessions(), time.Hour)

	for _, credential := range []string{"", "not-a-token", "deadbeef"} {
		if _, err := issuer.Verify(ctx, credential); !errors.Is(err, auth.ErrNotAuthenticated) {
			t.Fatalf("credential %q: expected ErrNotAuthenticated, got %v", credential, err)
		}
	}
}

func TestDatabaseIssuerExpiry(t *testing.T) {
	ctx := context.Background()
	sessions := store.NewMemoryStore().Sessions()
	issuer := NewDatabaseIssuer(sessions, time.Hour)

	// Plant an expired session directly; Issue never creates one.
	token, hash, err := auth.GenerateToken()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	_, err = sessions.Create(ctx, types.Session{
		UserID:    7,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("plant session: %v", err)
	}

	if _, err := issuer.Verify(ctx, token); !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated for expired session, got %v", err)
	}
}

func TestJWTIssuerLifecycle(t *testing.T) {
	ctx := context.Background()
	issuer := NewJWTIssuer([]byte("test-secret"), time.Hour)

	credential, err := issuer.Issue(ctx, 42)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	userID, err := issuer.Verify(ctx, credential)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != 42 {
		t.Fatalf("verify resolved to user %d, want 42", userID)
	}
}

func TestJWTIssuerRejectsTamperedAndForeignTokens(t *testing.T) {
	ctx := context.Background()
	issuer := NewJWTIssuer([]byte("test-secret"), time.Hour)

	credential, err := issuer.Issue(ctx, 42)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tampered := credential[:len(credential)-2] + "xx"
	if _, err := issuer.Verify(ctx, tampered); !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Fatalf("tampered token: expected ErrNotAuthenticated, got %v", err)
	}

	other := NewJWTIssuer([]byte("different-secret"), time.Hour)
	if _, err := other.Verify(ctx, credential); !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Fatalf("foreign-secret token: expected ErrNotAuthenticated, got %v", err)
	}

	if _, err := issuer.Verify(ctx, ""); !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Fatalf("empty credential: expected ErrNotAuthenticated, got %v", err)
	}
}

func TestJWTIssuerExpiry(t *testing.T) {
	ctx := context.Background()
	issuer := NewJWTIssuer([]byte("test-secret"), -time.Minute)

	credential, err := issuer.Issue(ctx, 42)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Verify(ctx, credential); !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated for expired token, got %v", err)
	}
}

func TestNewIssuerBackendSelection(t *testing.T) {
	sessions := store.NewMemoryStore().Sessions()

	issuer, err := NewIssuer(config.AuthConfig{SessionBackend: "database", SessionTTL: time.Hour}, sessions)
	if err != nil {
		t.Fatalf("database backend: %v", err)
	}
	if _, ok := issuer.(*DatabaseIssuer); !ok {
		t.Fatalf("expected *DatabaseIssuer, got %T", issuer)
	}

	issuer, err = NewIssuer(config.AuthConfig{SessionBackend: "jwt", JWTSecret: "secret", SessionTTL: time.Hour}, sessions)
	if err != nil {
		t.Fatalf("jwt backend: %v", err)
	}
	if _, ok := issuer.(*JWTIssuer); !ok {
		t.Fatalf("expected *JWTIssuer, got %T", issuer)
	}

	if _, err := NewIssuer(config.AuthConfig{SessionBackend: "jwt"}, sessions); err == nil {
		t.Fatal("jwt backend without a secret must fail")
	}
	if _, err := NewIssuer(config.AuthConfig{SessionBackend: "bogus"}, sessions); err == nil {
		t.Fatal("unknown backend must fail")
	}
}

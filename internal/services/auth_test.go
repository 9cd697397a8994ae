package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/syncveil/apiserver/internal/auth"
	"github.com/syncveil/apiserver/internal/events"
	"github.com/syncveil/apiserver/internal/store"
	"github.com/syncveil/apiserver/types"
)

// captureMailer records outbound verification tokens instead of sending them.
type captureMailer struct {
	recipients []string
	tokens     []string
	fail       bool
}

func (m *captureMailer) SendVerification(_ context.Context, toEmail, token string) error {
	if m.fail {
		return errors.New("mailer down")
	}
	m.recipients = append(m.recipients, toEmail)
	m.tokens = append(m.tokens, token)
	return nil
}

func (m *captureMailer) lastToken(t *testing.T) string {
	t.Helper()
	if len(m.tokens) == 0 {
		t.Fatal("no verification email was sent")
	}
	return m.tokens[len(m.tokens)-1]
}

type authFixture struct {
	service *AuthService
	memory  *store.MemoryStore
	mailer  *captureMailer
}

func newAuthFixture(t *testing.T, autoVerify bool) *authFixture {
	t.Helper()

	memory := store.NewMemoryStore()
	mailer := &captureMailer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hasher := auth.NewHasher(auth.HasherParams{Time: 1, Memory: 8, Threads: 1})
	verification := NewVerificationService(memory.Tokens(), 24*time.Hour)
	sessions := NewDatabaseIssuer(memory.Sessions(), time.Hour)

	service := NewAuthService(
		memory.Users(),
		hasher,
		verification,
		sessions,
		mailer,
		events.NewBus(nil),
		logger,
		autoVerify,
	)
	return &authFixture{service: service, memory: memory, mailer: mailer}
}

func TestSignupPendingVerification(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, false)

	user, err := f.service.Signup(ctx, "u@test.com", "Secret123!", "Uta Test")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.EmailVerified {
		t.Fatal("new user must start unverified")
	}
	if user.PasswordHash == "" {
		t.Fatal("stored user must have a password hash")
	}
	if user.PasswordHash == "Secret123!" {
		t.Fatal("password must not be stored as plaintext")
	}
	if len(f.mailer.recipients) != 1 || f.mailer.recipients[0] != "u@test.com" {
		t.Fatalf("expected one verification email to u@test.com, got %v", f.mailer.recipients)
	}
}

func TestSignupDuplicateEmailCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, false)

	if _, err := f.service.Signup(ctx, "a@x.com", "Secret123!", ""); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	_, err := f.service.Signup(ctx, "A@X.com", "Different123!", "")
	if !errors.Is(err, auth.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	if _, err := f.memory.Users().GetByEmail(ctx, "a@x.com"); err != nil {
		t.Fatalf("original user must still exist: %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, false)

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"malformed email", "not-an-address", "Secret123!"},
		{"display name form", "User <u@test.com>", "Secret123!"},
		{"empty email", "", "Secret123!"},
		{"short password", "u@test.com", "short"},
		{"empty password", "u@test.com", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.Signup(ctx, tc.email, tc.password, "")
			if !errors.Is(err, auth.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestSignupSurvivesMailerFailure(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, false)
	f.mailer.fail = true

	if _, err := f.service.Signup(ctx, "u@test.com", "Secret123!", ""); err != nil {
		t.Fatalf("signup must succeed despite mailer failure: %v", err)
	}
	if _, err := f.memory.Users().GetByEmail(ctx, "u@test.com"); err != nil {
		t.Fatalf("user must exist after mailer failure: %v", err)
	}
}

func TestLoginRequiresVerification(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, false)

	if _, err := f.service.Signup(ctx, "u@test.com", "Secret123!", ""); err != nil {
		t.Fatalf("signup: %v", err)
	}

	_, _, err := f.service.Login(ctx, "u@test.com", "Secret123!")
	if !errors.Is(err, auth.ErrEmailNotVerified) {
		t.Fatalf("expected ErrEmailNotVerified before verification, got %v", err)
	}

	if _, err := f.service.VerifyEmail(ctx, f.mailer.lastToken(t)); err != nil {
		t.Fatalf("verify email: %v", err)
	}

	user, credential, err := f.service.Login(ctx, "u@test.com", "Secret123!")
	if err != nil {
		t.Fatalf("login after verification: %v", err)
	}
	if credential == "" {
		t.Fatal("expected a session credential")
	}
	if !user.EmailVerified {
		t.Fatal("user must be verified after token consumption")
	}
}

func TestLoginErrorsIndistinguishable(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, false)

	if _, err := f.service.Signup(ctx, "u@test.com", "Secret123!", ""); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := f.service.VerifyEmail(ctx, f.mailer.lastToken(t)); err != nil {
		t.Fatalf("verify: %v", err)
	}

	_, _, wrongPassword := f.service.Login(ctx, "u@test.com", "WrongPass123!")
	_, _, unknownEmail := f.service.Login(ctx, "nobody@test.com", "Secret123!")

	if !errors.Is(wrongPassword, auth.ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", wrongPassword)
	}
	if !errors.Is(unknownEmail, auth.ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", unknownEmail)
	}
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Fatal("the two failures must be externally indistinguishable")
	}
}

func TestVerifyEmailTokenErrors(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, false)

	if _, err := f.service.Signup(ctx, "u@test.com", "Secret123!", ""); err != nil {
		t.Fatalf("signup: %v", err)
	}
	token := f.mailer.lastToken(t)

	if _, err := f.service.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("first consumption: %v", err)
	}
	if _, err := f.service.VerifyEmail(ctx, token); !errors.Is(err, auth.ErrTokenAlreadyConsumed) {
		t.Fatalf("second consumption: expected ErrTokenAlreadyConsumed, got %v", err)
	}
	if _, err := f.service.VerifyEmail(ctx, "00000000000000000000000000000000"); !errors.Is(err, auth.ErrTokenNotFound) {
		t.Fatalf("unknown token: expected ErrTokenNotFound, got %v", err)
	}
}

func TestVerifyEmailExpiredToken(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, false)

	user, err := f.service.Signup(ctx, "u@test.com", "Secret123!", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	// Plant an already-expired token directly; the issuer never creates one.
	token, hash, err := auth.GenerateToken()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	_, err = f.memory.Tokens().Create(ctx, types.VerificationToken{
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("plant token: %v", err)
	}

	if _, err := f.service.VerifyEmail(ctx, token); !errors.Is(err, auth.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestResendVerificationInvalidatesPriorToken(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, false)

	if _, err := f.service.Signup(ctx, "u@test.com", "Secret123!", ""); err != nil {
		t.Fatalf("signup: %v", err)
	}
	first := f.mailer.lastToken(t)

	if err := f.service.ResendVerification(ctx, "u@test.com"); err != nil {
		t.Fatalf("resend: %v", err)
	}
	second := f.mailer.lastToken(t)
	if first == second {
		t.Fatal("resend must issue a fresh token")
	}

	if _, err := f.service.VerifyEmail(ctx, first); !errors.Is(err, auth.ErrTokenNotFound) {
		t.Fatalf("superseded token: expected ErrTokenNotFound, got %v", err)
	}
	if _, err := f.service.VerifyEmail(ctx, second); err != nil {
		t.Fatalf("fresh token: %v", err)
	}
}

func TestResendVerificationDoesNotLeakAccounts(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, false)

	if err := f.service.ResendVerification(ctx, "nobody@test.com"); err != nil {
		t.Fatalf("resend for unknown email must be silent, got %v", err)
	}
}

func TestLogoutIdempotentAndWhoAmI(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, false)

	if _, err := f.service.Signup(ctx, "u@test.com", "Secret123!", ""); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := f.service.VerifyEmail(ctx, f.mailer.lastToken(t)); err != nil {
		t.Fatalf("verify: %v", err)
	}
	_, credential, err := f.service.Login(ctx, "u@test.com", "Secret123!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	user, err := f.service.WhoAmI(ctx, credential)
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if user.Email != "u@test.com" || !user.EmailVerified {
		t.Fatalf("unexpected whoami result: %+v", user)
	}

	serialized, err := json.Marshal(user)
	if err != nil {
		t.Fatalf("marshal user: %v", err)
	}
	if strings.Contains(string(serialized), "password") || strings.Contains(string(serialized), user.PasswordHash) {
		t.Fatalf("serialized user leaks the password hash: %s", serialized)
	}

	if err := f.service.Logout(ctx, credential); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := f.service.Logout(ctx, credential); err != nil {
		t.Fatalf("repeated logout must succeed: %v", err)
	}
	if _, err := f.service.WhoAmI(ctx, credential); !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated after logout, got %v", err)
	}
}

func TestAutoVerifyPolicy(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, true)

	user, err := f.service.Signup(ctx, "u@test.com", "Secret123!", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if !user.EmailVerified {
		t.Fatal("auto-verify must create the user verified")
	}
	if len(f.mailer.tokens) != 0 {
		t.Fatal("auto-verify must not send a verification email")
	}

	if _, _, err := f.service.Login(ctx, "u@test.com", "Secret123!"); err != nil {
		t.Fatalf("login under auto-verify: %v", err)
	}
}

// Full lifecycle: signup -> login blocked -> verify -> login -> whoami.
func TestCredentialLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, false)

	if _, err := f.service.Signup(ctx, "u@test.com", "Secret123!", ""); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, _, err := f.service.Login(ctx, "u@test.com", "Secret123!"); !errors.Is(err, auth.ErrEmailNotVerified) {
		t.Fatalf("pre-verification login: expected ErrEmailNotVerified, got %v", err)
	}
	if _, err := f.service.VerifyEmail(ctx, f.mailer.lastToken(t)); err != nil {
		t.Fatalf("verify: %v", err)
	}
	_, credential, err := f.service.Login(ctx, "u@test.com", "Secret123!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	user, err := f.service.WhoAmI(ctx, credential)
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if user.Email != "u@test.com" || !user.EmailVerified {
		t.Fatalf("unexpected final state: %+v", user)
	}
}

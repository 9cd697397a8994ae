package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/syncveil/apiserver/internal/auth"
	"github.com/syncveil/apiserver/internal/events"
	"github.com/syncveil/apiserver/internal/store"
	"github.com/syncveil/apiserver/types"
)

const minPasswordLength = 8

// decoyPasswordHash is verified against when login hits an unknown email, so
// the request does the same argon2 work either way and response timing does
// not reveal whether an account exists. It matches no real password.
const decoyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	MarkVerified(ctx context.Context, id int) error
}

// AuthService orchestrates the credential lifecycle: signup, email
// verification, login, logout, and whoami. It is the only component with
// business rules; the store, hasher, token issuers, and mailer are utilities
// it composes.
type AuthService struct {
	users        UserRepository
	hasher       *auth.Hasher
	verification *VerificationService
	sessions     Issuer
	mailer       Mailer
	bus          *events.Bus
	logger       *slog.Logger

	// autoVerify skips the verification step: users are created verified and
	// no token is issued. Off by default; verification-required is the safer
	// policy.
	autoVerify bool
}

func NewAuthService(
	users UserRepository,
	hasher *auth.Hasher,
	verification *VerificationService,
	sessions Issuer,
	mailer Mailer,
	bus *events.Bus,
	logger *slog.Logger,
	autoVerify bool,
) *AuthService {
	return &AuthService{
		users:        users,
		hasher:       hasher,
		verification: verification,
		sessions:     sessions,
		mailer:       mailer,
		bus:          bus,
		logger:       logger,
		autoVerify:   autoVerify,
	}
}

// Signup registers a new user in the pending-verification state and emails
// a verification token. No session is issued. Mail delivery failure does not
// roll the signup back; the user can request a resend.
func (s *AuthService) Signup(ctx context.Context, email, password, name string) (types.User, error) {
	email, err := normalizeAddress(email)
	if err != nil {
		return types.User{}, fmt.Errorf("%w: malformed email address", auth.ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return types.User{}, fmt.Errorf("%w: password must be at least %d characters", auth.ErrInvalidInput, minPasswordLength)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.users.Create(ctx, types.User{
		Email:         email,
		Name:          strings.TrimSpace(name),
		PasswordHash:  hash,
		EmailVerified: s.autoVerify,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return types.User{}, auth.ErrDuplicateEmail
		}
		return types.User{}, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "auto_verified", s.autoVerify)
	s.publish(ctx, events.Event{Type: events.TypeUserRegistered, UserID: user.ID, Email: user.Email})

	if !s.autoVerify {
		token, err := s.verification.Issue(ctx, user.ID)
		if err != nil {
			// The user exists and can request a resend; surface the failure.
			return types.User{}, err
		}
		if err := s.mailer.SendVerification(ctx, user.Email, token); err != nil {
			s.logger.Error("verification email failed", "user_id", user.ID, "error", err)
		}
	}

	return user, nil
}

// ResendVerification issues a fresh token for an unverified user and emails
// it. The previous token is invalidated. For unknown or already verified
// emails it reports nothing, to avoid account enumeration.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email, err := normalizeAddress(email)
	if err != nil {
		return fmt.Errorf("%w: malformed email address", auth.ErrInvalidInput)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if user.EmailVerified {
		return nil
	}

	token, err := s.verification.Issue(ctx, user.ID)
	if err != nil {
		return err
	}
	if err := s.mailer.SendVerification(ctx, user.Email, token); err != nil {
		s.logger.Error("verification email failed", "user_id", user.ID, "error", err)
	}
	return nil
}

// VerifyEmail consumes a verification token and transitions the owning user
// to verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (types.User, error) {
	userID, err := s.verification.Consume(ctx, strings.TrimSpace(token))
	if err != nil {
		return types.User{}, err
	}

	if err := s.users.MarkVerified(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, auth.ErrTokenNotFound
		}
		return types.User{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}

	s.logger.Info("email verified", "user_id", user.ID)
	s.publish(ctx, events.Event{Type: events.TypeUserVerified, UserID: user.ID, Email: user.Email})
	return user, nil
}

// Login verifies the credentials and issues a session credential. Unknown
// email and wrong password return the identical error kind; a matching
// password against an unverified account returns ErrEmailNotVerified.
func (s *AuthService) Login(ctx context.Context, email, password string) (types.User, string, error) {
	normalized, err := normalizeAddress(email)
	if err != nil {
		normalized = strings.ToLower(strings.TrimSpace(email))
	}

	user, lookupErr := s.users.GetByEmail(ctx, normalized)
	targetHash := decoyPasswordHash
	userExists := false
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
		userExists = true
	case errors.Is(lookupErr, store.ErrNotFound):
		// Fall through to the decoy verification below.
	default:
		return types.User{}, "", lookupErr
	}

	matched, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil && userExists {
		return types.User{}, "", verifyErr
	}
	if !userExists || !matched {
		if userExists {
			s.publish(ctx, events.Event{Type: events.TypeLoginFailed, UserID: user.ID, Email: user.Email, Detail: "wrong password"})
		} else {
			s.publish(ctx, events.Event{Type: events.TypeLoginFailed, Email: normalized, Detail: "unknown account"})
		}
		return types.User{}, "", auth.ErrInvalidCredentials
	}

	if !user.EmailVerified {
		return types.User{}, "", auth.ErrEmailNotVerified
	}

	credential, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		return types.User{}, "", err
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	s.publish(ctx, events.Event{Type: events.TypeLoginSucceeded, UserID: user.ID, Email: user.Email})
	return user, credential, nil
}

// Logout revokes the credential. It always succeeds, even when the
// credential is already invalid or revoked.
func (s *AuthService) Logout(ctx context.Context, credential string) error {
	return s.sessions.Revoke(ctx, credential)
}

// WhoAmI resolves a credential to its user. The returned profile never
// carries the password hash (the field is excluded from serialization).
func (s *AuthService) WhoAmI(ctx context.Context, credential string) (types.User, error) {
	userID, err := s.sessions.Verify(ctx, credential)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, auth.ErrNotAuthenticated
		}
		return types.User{}, err
	}
	return user, nil
}

// VerifyCredential resolves a credential to a user id for middleware use.
func (s *AuthService) VerifyCredential(ctx context.Context, credential string) (int, error) {
	return s.sessions.Verify(ctx, credential)
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Error("publish event failed", "type", event.Type, "error", err)
	}
}

func normalizeAddress(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return "", err
	}
	// Reject the "Name <addr>" form; only a bare address is an identity.
	if addr.Address != email {
		return "", errors.New("must be a bare address")
	}
	return strings.ToLower(email), nil
}

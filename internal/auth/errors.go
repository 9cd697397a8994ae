package auth

import "errors"

// Stable, user-facing error kinds returned by the auth service. Handlers map
// these to HTTP statuses and machine-readable kind strings; anything else is a
// transient storage or internal failure and must not be conflated with them.
var (
	// ErrDuplicateEmail is returned when a signup email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidCredentials is returned on login when the email is unknown or
	// the password does not verify. The two cases are deliberately
	// indistinguishable to prevent account enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailNotVerified is returned on login when the password verifies but
	// the user has not yet consumed a verification token.
	ErrEmailNotVerified = errors.New("email not verified")

	// ErrTokenNotFound is returned when a verification token does not exist.
	ErrTokenNotFound = errors.New("verification token not found")

	// ErrTokenExpired is returned when a verification token is past its TTL.
	ErrTokenExpired = errors.New("verification token expired")

	// ErrTokenAlreadyConsumed is returned when a verification token was
	// already used.
	ErrTokenAlreadyConsumed = errors.New("verification token already consumed")

	// ErrNotAuthenticated is returned when a session credential is missing,
	// invalid, expired, or revoked.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInvalidInput is returned when a request fails input validation
	// before any business rule runs (malformed email, short password).
	ErrInvalidInput = errors.New("invalid input")
)

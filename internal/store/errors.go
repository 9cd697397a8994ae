package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when creating a user whose email is already
// registered, case-insensitively. The Postgres backend maps unique-violation
// errors on the email index to this sentinel so callers never race a
// check-then-insert.
var ErrDuplicateEmail = errors.New("duplicate email")

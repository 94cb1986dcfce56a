package authcore

import (
	"errors"

	"github.com/bookly/authcore/authz"
	"github.com/bookly/authcore/token"
)

// Authentication and account errors. Token and authorization sentinels
// are aliased from their owning packages so errors.Is works no matter
// which import path a caller matches against.
var (
	// ErrInvalidCredentials is returned for a bad email or password.
	// Deliberately generic: it never reveals whether the account exists.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInactiveUser is returned when credentials match but the account
	// is deactivated.
	ErrInactiveUser = errors.New("user account is inactive")

	// ErrUserNotVerified is returned by flows that require a verified
	// email address, such as admin login.
	ErrUserNotVerified = errors.New("user email is not verified")

	// ErrLoginRateLimited is returned when the caller's IP has exceeded
	// the failed-login threshold. Distinguishable from bad credentials:
	// it leaks only that the IP is blocked, never account existence.
	ErrLoginRateLimited = errors.New("too many failed login attempts")

	// ErrUserExists is returned when registering a duplicate email or
	// username.
	ErrUserExists = errors.New("user already exists")

	// ErrUserNotFound is returned by lookups for unknown user IDs.
	ErrUserNotFound = errors.New("user not found")

	// ErrPasswordReuse is returned when a password change supplies the
	// current password as the new one.
	ErrPasswordReuse = errors.New("new password must differ from the current one")

	ErrInvalidToken          = token.ErrInvalid
	ErrTokenExpired          = token.ErrExpired
	ErrTokenTypeInvalid      = token.ErrTypeMismatch
	ErrTokenRevoked          = token.ErrRevoked
	ErrRevocationUnavailable = token.ErrRevocationUnavailable

	ErrNotAuthorized = authz.ErrNotAuthorized
)

package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bookly/authcore/authz"
	"github.com/bookly/authcore/token"
)

// Login verifies credentials and issues a token pair. The sequence is
// fixed: rate gate, credential check, active check, counter clear,
// rehash check, token issue. A failed credential check records a
// failure against the caller's IP before returning; the error never
// distinguishes an unknown email from a wrong password.
func (e *Engine) Login(ctx context.Context, email, plaintext string) (TokenPair, error) {
	user, err := e.authenticate(ctx, email, plaintext, EventLogin)
	if err != nil {
		return TokenPair{}, err
	}
	return e.issuePair(ctx, user, EventLogin)
}

// LoginAdmin is Login plus a staff gate: the account must be verified
// and hold at least the moderator role. Runs on the same single user
// fetch as Login.
func (e *Engine) LoginAdmin(ctx context.Context, email, plaintext string) (TokenPair, error) {
	user, err := e.authenticate(ctx, email, plaintext, EventAdminLogin)
	if err != nil {
		return TokenPair{}, err
	}

	if !user.IsVerified {
		e.emit(ctx, EventAdminLogin, user.ID, false, ErrUserNotVerified, nil)
		return TokenPair{}, ErrUserNotVerified
	}
	if err := authz.RequireRole(user.Actor(), authz.RoleModerator); err != nil {
		e.emit(ctx, EventAdminLogin, user.ID, false, err, nil)
		return TokenPair{}, err
	}

	return e.issuePair(ctx, user, EventAdminLogin)
}

// authenticate runs the shared login machine up to and including the
// rehash check, returning the authenticated user.
func (e *Engine) authenticate(ctx context.Context, email, plaintext, eventType string) (UserRecord, error) {
	ip := clientIPFromContext(ctx)

	if err := e.checkLoginLimit(ctx, ip); err != nil {
		e.emit(ctx, eventType, "", false, err, nil)
		return UserRecord{}, err
	}

	user, err := e.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		// A store outage is not a credential failure: nothing is held
		// against the caller's IP.
		e.emit(ctx, eventType, "", false, err, nil)
		return UserRecord{}, fmt.Errorf("fetch user by email: %w", err)
	}
	if err != nil || !e.hasher.Verify(plaintext, user.PasswordHash) {
		e.recordLoginFailure(ctx, ip)
		e.metrics.inc(MetricLoginFailure)
		e.emit(ctx, eventType, user.ID, false, ErrInvalidCredentials, nil)
		return UserRecord{}, ErrInvalidCredentials
	}

	if !user.IsActive {
		e.metrics.inc(MetricLoginFailure)
		e.emit(ctx, eventType, user.ID, false, ErrInactiveUser, nil)
		return UserRecord{}, ErrInactiveUser
	}

	e.clearLoginFailures(ctx, ip)

	if e.hasher.NeedsRehash(user.PasswordHash) {
		if err := e.rehash(ctx, &user, plaintext); err != nil {
			// The credentials are already proven; a failed upgrade must
			// not block the login.
			e.logger.Error().Err(err).Str("user_id", user.ID).Msg("password rehash failed")
		}
	}

	return user, nil
}

// rehash transparently upgrades the stored hash to the configured
// scheme and parameters.
func (e *Engine) rehash(ctx context.Context, user *UserRecord, plaintext string) error {
	upgraded, err := e.hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	if err := e.users.UpdatePasswordHash(ctx, user.ID, upgraded); err != nil {
		return err
	}
	user.PasswordHash = upgraded
	e.metrics.inc(MetricPasswordRehash)
	e.logger.Info().Str("user_id", user.ID).Msg("password hash upgraded")
	return nil
}

func (e *Engine) issuePair(ctx context.Context, user UserRecord, eventType string) (TokenPair, error) {
	extra := map[string]any{
		"role":  user.Role.String(),
		"email": user.Email,
	}

	access, err := e.codec.Create(user.ID, token.TypeAccess, 0, extra)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := e.codec.Create(user.ID, token.TypeRefresh, 0, nil)
	if err != nil {
		return TokenPair{}, err
	}

	if err := e.users.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		e.logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	}

	e.metrics.inc(MetricLoginSuccess)
	e.metrics.inc(MetricTokensIssued)
	e.emit(ctx, eventType, user.ID, true, nil, nil)

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
